package officevisit

import (
	"context"
	"fmt"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/workflow"
)

// Users resolves usernames named by a visit.
type Users interface {
	Roles(ctx context.Context, username string) ([]auth.Role, error)
}

// Hospitals resolves the hospital named by a visit.
type Hospitals interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// References checks the users and hospital a visit points at.
type References struct {
	Users     Users
	Hospitals Hospitals
}

func hasAny(roles []auth.Role, want ...auth.Role) bool {
	for _, r := range roles {
		for _, w := range want {
			if r == w {
				return true
			}
		}
	}
	return false
}

// Resolve returns a validation error naming every dangling reference of v.
func (r References) Resolve(ctx context.Context, v *OfficeVisit) error {
	var violations []apperr.Violation

	check := func(field, username, msg string, want ...auth.Role) error {
		roles, err := r.Users.Roles(ctx, username)
		switch {
		case apperr.IsNotFound(err):
			violations = append(violations, apperr.Violation{Field: field, Constraint: "reference", Message: "no such user"})
		case err != nil:
			return err
		case !hasAny(roles, want...):
			violations = append(violations, apperr.Violation{Field: field, Constraint: "reference", Message: msg})
		}
		return nil
	}
	if err := check("patient", v.Patient, "must be a patient", auth.RolePatient); err != nil {
		return err
	}
	if err := check("hcp", v.HCP, "must be a clinician", auth.ClinicianRoles...); err != nil {
		return err
	}

	ok, err := r.Hospitals.Exists(ctx, v.Hospital)
	if err != nil {
		return err
	}
	if !ok {
		violations = append(violations, apperr.Violation{Field: "hospital", Constraint: "reference", Message: "no such hospital"})
	}

	if len(violations) > 0 {
		return apperr.Invalid(violations...)
	}
	return nil
}

// VisibleTo hides other patients' visits from a patient. Clinicians see
// every visit; route guards decide who may read at all.
func VisibleTo(p auth.Principal, v *OfficeVisit) bool {
	if p.IsClinician() || !p.HasRole(auth.RolePatient) {
		return true
	}
	return v.Patient == p.Username
}

// ViewEntry is the entry recorded when p reads v.
func ViewEntry(prefix string, p auth.Principal, v *OfficeVisit) (audit.Entry, bool) {
	switch {
	case p.IsClinician():
		return audit.Entry{Type: audit.TypeOf(prefix, audit.OpHCPView), Target: v.Patient}, true
	case p.HasRole(auth.RolePatient):
		return audit.Entry{Type: audit.TypeOf(prefix, audit.OpPatientView), Target: v.Patient}, true
	}
	return audit.Entry{}, false
}

// MetricsChange describes an edit to the basic health metrics, if any.
func MetricsChange(old, v *OfficeVisit) []audit.Entry {
	if old.Metrics.Equal(v.Metrics) {
		return nil
	}
	return []audit.Entry{{
		Actor:  v.HCP,
		Target: v.Patient,
		Detail: fmt.Sprintf("%s updated basic health metrics for %s from %s", v.HCP, v.Patient, FormatDate(v.Date)),
	}}
}

// HCPViewEntry and PatientViewEntry are recorded by the explicit view
// markers. Names come from the stored visit.
func HCPViewEntry(prefix string, v *OfficeVisit) audit.Entry {
	return audit.Entry{
		Type:   audit.TypeOf(prefix, audit.OpHCPView),
		Actor:  v.HCP,
		Target: v.Patient,
		Detail: fmt.Sprintf("%s viewed basic health metrics for %s from %s", v.HCP, v.Patient, FormatDate(v.Date)),
	}
}

func PatientViewEntry(prefix string, v *OfficeVisit) audit.Entry {
	return audit.Entry{
		Type:   audit.TypeOf(prefix, audit.OpPatientView),
		Actor:  v.Patient,
		Target: v.Patient,
		Detail: fmt.Sprintf("%s viewed their basic health metrics from %s", v.Patient, FormatDate(v.Date)),
	}
}

const prefix = "OFFICE_VISIT"

type Service struct {
	wf  *workflow.Workflow[OfficeVisit, int64]
	rec audit.Recorder
}

func NewService(repo Repository, tx db.Transactor, rec audit.Recorder, refs References) *Service {
	wf := workflow.New[OfficeVisit, int64](repo, tx, rec, workflow.Hooks[OfficeVisit, int64]{
		Prefix:   prefix,
		Noun:     "office visit",
		Key:      func(v *OfficeVisit) int64 { return v.ID },
		Target:   func(v *OfficeVisit) string { return v.Patient },
		Assigned: func(v *OfficeVisit) bool { return v.ID != 0 },
		KeyField: "id",
		SetKey:   func(v *OfficeVisit, id int64) { v.ID = id },
		Resolve:  refs.Resolve,
		Changes:  MetricsChange,
		Visible:  VisibleTo,
		View: func(p auth.Principal, v *OfficeVisit) (audit.Entry, bool) {
			return ViewEntry(prefix, p, v)
		},
		DeleteDetail: func(v *OfficeVisit) string {
			return fmt.Sprintf("Deleted office visit %d for %s", v.ID, v.Patient)
		},
	})
	return &Service{wf: wf, rec: rec}
}

func (s *Service) Create(ctx context.Context, f Form) (*OfficeVisit, error) {
	return s.wf.Create(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*OfficeVisit, error) {
	return s.wf.Read(ctx, id)
}

// List returns every visit the caller may see.
func (s *Service) List(ctx context.Context) ([]OfficeVisit, error) {
	return s.wf.List(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, f Form) (*OfficeVisit, error) {
	return s.wf.Update(ctx, id, f)
}

// Delete removes the visit and returns its id.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	v, err := s.wf.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	return v.ID, nil
}

// MarkHCPView records that the visit's clinician viewed its metrics.
func (s *Service) MarkHCPView(ctx context.Context, id int64) error {
	v, err := s.wf.Lookup(ctx, id)
	if err != nil {
		return err
	}
	s.rec.Record(ctx, HCPViewEntry(prefix, v))
	return nil
}

// MarkPatientView records that the visit's patient viewed its metrics. A
// patient marking someone else's visit gets NotFound.
func (s *Service) MarkPatientView(ctx context.Context, id int64) error {
	v, err := s.wf.Lookup(ctx, id)
	if err != nil {
		return err
	}
	p, _ := auth.PrincipalFromContext(ctx)
	if !VisibleTo(p, v) {
		return apperr.NotFound("no office visit with key %d", id)
	}
	s.rec.Record(ctx, PatientViewEntry(prefix, v))
	return nil
}
