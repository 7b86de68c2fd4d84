package emergency

import (
	"context"

	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
)

type Service struct {
	repo  Repository
	users officevisit.Users
	rec   audit.Recorder
}

func NewService(repo Repository, users officevisit.Users, rec audit.Recorder) *Service {
	return &Service{repo: repo, users: users, rec: rec}
}

// Get returns the emergency record of patient and audits the access.
// Unknown patients and patients without recorded vitals are NotFound.
func (s *Service) Get(ctx context.Context, patient string) (*Record, error) {
	roles, err := s.users.Roles(ctx, patient)
	if err != nil {
		return nil, err
	}
	isPatient := false
	for _, r := range roles {
		if r == auth.RolePatient {
			isPatient = true
		}
	}
	if !isPatient {
		return nil, apperr.NotFound("patient %q not found", patient)
	}

	v, err := s.repo.Latest(ctx, patient)
	if err != nil {
		return nil, err
	}
	s.rec.Record(ctx, audit.Entry{Type: audit.EmergencyRecordView, Target: patient})
	return RecordOf(v), nil
}
