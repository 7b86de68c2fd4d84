package hospital

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/cache"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/workflow"
)

const listKey = "hospitals"

func itemKey(name string) string { return "hospital:" + name }

type Service struct {
	wf    *workflow.Workflow[Hospital, string]
	cache *cache.Cache
}

func NewService(repo Repository, tx db.Transactor, rec audit.Recorder, c *cache.Cache) *Service {
	wf := workflow.New[Hospital, string](repo, tx, rec, workflow.Hooks[Hospital, string]{
		Prefix: "HOSPITAL",
		Noun:   "hospital",
		Key:    func(h *Hospital) string { return h.Name },
		Target: func(h *Hospital) string { return h.Name },
		DeleteDetail: func(h *Hospital) string {
			return "Deleted hospital with name " + h.Name
		},
	})
	if c == nil {
		c = cache.Disabled()
	}
	return &Service{wf: wf, cache: c}
}

func (s *Service) invalidate(ctx context.Context, names ...string) {
	keys := []string{listKey}
	for _, n := range names {
		keys = append(keys, itemKey(n))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("hospital cache invalidation failed")
	}
}

func (s *Service) Create(ctx context.Context, f Form) (*Hospital, error) {
	h, err := s.wf.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, h.Name)
	return h, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Hospital, error) {
	var cached Hospital
	if err := s.cache.Get(ctx, itemKey(name), &cached); err == nil {
		return &cached, nil
	}
	h, err := s.wf.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, itemKey(name), h); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("hospital cache write failed")
	}
	return h, nil
}

func (s *Service) List(ctx context.Context) ([]Hospital, error) {
	var cached []Hospital
	if err := s.cache.Get(ctx, listKey, &cached); err == nil {
		return cached, nil
	}
	items, err := s.wf.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, listKey, items); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("hospital cache write failed")
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, name string, f Form) (*Hospital, error) {
	h, err := s.wf.Update(ctx, name, f)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, name, h.Name)
	return h, nil
}

// Delete removes the hospital and returns its name.
func (s *Service) Delete(ctx context.Context, name string) (string, error) {
	h, err := s.wf.Delete(ctx, name)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, name)
	return h.Name, nil
}

// Exists reports whether a hospital named name is on file. It is used for
// reference checks and is neither cached nor audited.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.wf.Lookup(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case apperr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
