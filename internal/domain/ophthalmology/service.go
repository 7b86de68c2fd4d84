package ophthalmology

import (
	"context"
	"fmt"

	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/workflow"
)

const prefix = "OPHTHALMOLOGY_SURGERY"

type Service struct {
	wf  *workflow.Workflow[Surgery, int64]
	rec audit.Recorder
}

func NewService(repo Repository, tx db.Transactor, rec audit.Recorder, refs officevisit.References) *Service {
	wf := workflow.New[Surgery, int64](repo, tx, rec, workflow.Hooks[Surgery, int64]{
		Prefix:   prefix,
		Noun:     "ophthalmology surgery",
		Key:      func(s *Surgery) int64 { return s.ID },
		Target:   func(s *Surgery) string { return s.Patient },
		Assigned: func(s *Surgery) bool { return s.ID != 0 },
		KeyField: "id",
		SetKey:   func(s *Surgery, id int64) { s.ID = id },
		Resolve: func(ctx context.Context, s *Surgery) error {
			return refs.Resolve(ctx, &s.OfficeVisit)
		},
		Changes: func(old, s *Surgery) []audit.Entry {
			return officevisit.MetricsChange(&old.OfficeVisit, &s.OfficeVisit)
		},
		Visible: func(p auth.Principal, s *Surgery) bool {
			return officevisit.VisibleTo(p, &s.OfficeVisit)
		},
		View: func(p auth.Principal, s *Surgery) (audit.Entry, bool) {
			return officevisit.ViewEntry(prefix, p, &s.OfficeVisit)
		},
		DeleteDetail: func(s *Surgery) string {
			return fmt.Sprintf("Deleted ophthalmology surgery %d for %s", s.ID, s.Patient)
		},
	})
	return &Service{wf: wf, rec: rec}
}

func (s *Service) Create(ctx context.Context, f Form) (*Surgery, error) {
	return s.wf.Create(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*Surgery, error) {
	return s.wf.Read(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Surgery, error) {
	return s.wf.List(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, f Form) (*Surgery, error) {
	return s.wf.Update(ctx, id, f)
}

func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	deleted, err := s.wf.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	return deleted.ID, nil
}

func (s *Service) MarkHCPView(ctx context.Context, id int64) error {
	surgery, err := s.wf.Lookup(ctx, id)
	if err != nil {
		return err
	}
	s.rec.Record(ctx, officevisit.HCPViewEntry(prefix, &surgery.OfficeVisit))
	return nil
}

func (s *Service) MarkPatientView(ctx context.Context, id int64) error {
	surgery, err := s.wf.Lookup(ctx, id)
	if err != nil {
		return err
	}
	p, _ := auth.PrincipalFromContext(ctx)
	if !officevisit.VisibleTo(p, &surgery.OfficeVisit) {
		return apperr.NotFound("no ophthalmology surgery with key %d", id)
	}
	s.rec.Record(ctx, officevisit.PatientViewEntry(prefix, &surgery.OfficeVisit))
	return nil
}
