// Package workflow implements the role-gated create, read, update, delete
// and list operations shared by every resource. Resource packages supply a
// Repository, a Form and a Hooks value; the workflow supplies validation,
// conflict and not-found handling, the unit of work and the audit trail.
package workflow

import (
	"context"
	"fmt"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/validation"
)

// Repository is the persistence capability set of one resource type. Get
// returns an apperr NotFound when key is absent. Update replaces the row
// stored under key, which may differ from the key carried by r.
type Repository[R any, K comparable] interface {
	Create(ctx context.Context, r *R) error
	Get(ctx context.Context, key K) (*R, error)
	List(ctx context.Context) ([]R, error)
	Update(ctx context.Context, key K, r *R) error
	Delete(ctx context.Context, key K) error
}

// Form is the loosely typed request body of a resource.
type Form[R any] interface {
	Rules() validation.Rules
	Values() validation.Values
	// Build constructs the resource from an already validated form.
	Build() (*R, error)
}

// Hooks describe how the workflow treats one resource type. Only Prefix,
// Noun, Key and Target are required.
type Hooks[R any, K comparable] struct {
	// Prefix starts every audit transaction type, e.g. "HOSPITAL".
	Prefix string
	// Noun names the resource in messages, e.g. "hospital".
	Noun string

	Key    func(r *R) K
	Target func(r *R) string

	// Assigned reports whether a new resource already carries its key.
	// Defaults to true.
	Assigned func(r *R) bool

	// KeyField names the form field holding the key. When SetKey is set the
	// key is immutable: an update body naming another key is a validation
	// error on KeyField, and the path key is copied into the replacement.
	KeyField string
	SetKey   func(r *R, key K)

	// Resolve checks references to other resources.
	Resolve func(ctx context.Context, r *R) error

	// Carry copies fields the form does not replace from old into r.
	Carry func(old, r *R)

	// Changes returns extra audit entries describing what an update changed.
	Changes func(old, r *R) []audit.Entry

	// Visible hides resources from a principal; a hidden resource reads as
	// not found.
	Visible func(p auth.Principal, r *R) bool

	// View returns the entry recorded when p reads r, if any.
	View func(p auth.Principal, r *R) (audit.Entry, bool)

	DeleteDetail func(r *R) string
}

type Workflow[R any, K comparable] struct {
	repo  Repository[R, K]
	tx    db.Transactor
	rec   audit.Recorder
	hooks Hooks[R, K]
}

func New[R any, K comparable](repo Repository[R, K], tx db.Transactor, rec audit.Recorder, hooks Hooks[R, K]) *Workflow[R, K] {
	if hooks.Key == nil || hooks.Target == nil {
		panic("workflow: Key and Target hooks are required")
	}
	return &Workflow[R, K]{repo: repo, tx: tx, rec: rec, hooks: hooks}
}

func (w *Workflow[R, K]) auditType(op string) audit.TransactionType {
	return audit.TypeOf(w.hooks.Prefix, op)
}

func (w *Workflow[R, K]) validate(f Form[R]) (*R, error) {
	if err := f.Rules().Check(f.Values()); err != nil {
		return nil, err
	}
	return f.Build()
}

// exists distinguishes an absent key from a lookup failure.
func (w *Workflow[R, K]) exists(ctx context.Context, key K) (bool, error) {
	_, err := w.repo.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case apperr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (w *Workflow[R, K]) Create(ctx context.Context, f Form[R]) (*R, error) {
	r, err := w.validate(f)
	if err != nil {
		return nil, err
	}

	err = w.tx.InTx(ctx, func(ctx context.Context) error {
		if w.hooks.Assigned == nil || w.hooks.Assigned(r) {
			found, err := w.exists(ctx, w.hooks.Key(r))
			if err != nil {
				return err
			}
			if found {
				return apperr.Conflict("%s %v already exists", w.hooks.Noun, w.hooks.Key(r))
			}
		}
		if w.hooks.Resolve != nil {
			if err := w.hooks.Resolve(ctx, r); err != nil {
				return err
			}
		}
		if err := w.repo.Create(ctx, r); err != nil {
			return err
		}
		w.rec.Record(ctx, audit.Entry{Type: w.auditType(audit.OpCreate), Target: w.hooks.Target(r)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Read returns the resource under key and records a view entry when the
// resource type audits reads. Absent keys are not audited.
func (w *Workflow[R, K]) Read(ctx context.Context, key K) (*R, error) {
	r, err := w.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	p, _ := auth.PrincipalFromContext(ctx)
	if w.hooks.Visible != nil && !w.hooks.Visible(p, r) {
		return nil, apperr.NotFound("no %s with key %v", w.hooks.Noun, key)
	}
	if w.hooks.View != nil {
		if e, ok := w.hooks.View(p, r); ok {
			w.rec.Record(ctx, e)
		}
	}
	return r, nil
}

// Lookup returns the resource under key without visibility checks or audit.
func (w *Workflow[R, K]) Lookup(ctx context.Context, key K) (*R, error) {
	return w.repo.Get(ctx, key)
}

func (w *Workflow[R, K]) List(ctx context.Context) ([]R, error) {
	items, err := w.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if w.hooks.Visible == nil {
		return items, nil
	}
	p, _ := auth.PrincipalFromContext(ctx)
	out := make([]R, 0, len(items))
	for i := range items {
		if w.hooks.Visible(p, &items[i]) {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// Update fully replaces the resource stored under key. For renamable
// resources the replacement may carry a new key; the row is re-keyed in
// place so exactly one row remains.
func (w *Workflow[R, K]) Update(ctx context.Context, key K, f Form[R]) (*R, error) {
	var r *R
	err := w.tx.InTx(ctx, func(ctx context.Context) error {
		old, err := w.repo.Get(ctx, key)
		if err != nil {
			return err
		}

		r, err = w.validate(f)
		if err != nil {
			return err
		}

		if w.hooks.SetKey != nil {
			if (w.hooks.Assigned == nil || w.hooks.Assigned(r)) && w.hooks.Key(r) != key {
				return apperr.InvalidField(w.hooks.KeyField, "match",
					fmt.Sprintf("must match the %s being updated", w.hooks.Noun))
			}
			w.hooks.SetKey(r, key)
		} else if newKey := w.hooks.Key(r); newKey != key {
			found, err := w.exists(ctx, newKey)
			if err != nil {
				return err
			}
			if found {
				return apperr.Conflict("%s %v already exists", w.hooks.Noun, newKey)
			}
		}

		if w.hooks.Carry != nil {
			w.hooks.Carry(old, r)
		}
		if w.hooks.Resolve != nil {
			if err := w.hooks.Resolve(ctx, r); err != nil {
				return err
			}
		}

		var changes []audit.Entry
		if w.hooks.Changes != nil {
			changes = w.hooks.Changes(old, r)
		}

		if err := w.repo.Update(ctx, key, r); err != nil {
			return err
		}
		for _, e := range changes {
			if e.Type == "" {
				e.Type = w.auditType(audit.OpEdit)
			}
			w.rec.Record(ctx, e)
		}
		w.rec.Record(ctx, audit.Entry{Type: w.auditType(audit.OpEdit), Target: w.hooks.Target(r)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the resource under key and returns the deleted resource.
func (w *Workflow[R, K]) Delete(ctx context.Context, key K) (*R, error) {
	var r *R
	err := w.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = w.repo.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := w.repo.Delete(ctx, key); err != nil {
			return err
		}
		e := audit.Entry{Type: w.auditType(audit.OpDelete), Target: w.hooks.Target(r)}
		if w.hooks.DeleteDetail != nil {
			e.Detail = w.hooks.DeleteDetail(r)
		}
		w.rec.Record(ctx, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
