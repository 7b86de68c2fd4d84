// Package sandbox loads fixture data for demo and development environments.
// Fixtures are YAML documents listing hospitals, users, office visits and
// ophthalmology surgeries. Every record goes through the same service as an
// API request, so it is validated and audited; records that already exist
// are skipped, which makes seeding repeatable.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/itrust/itrust/internal/domain/hospital"
	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/domain/ophthalmology"
	"github.com/itrust/itrust/internal/domain/user"
	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
)

// Fixtures is the document format read by Load.
type Fixtures struct {
	Hospitals    []hospital.Form      `yaml:"hospitals"`
	Users        []user.Form          `yaml:"users"`
	OfficeVisits []officevisit.Form   `yaml:"officeVisits"`
	Surgeries    []ophthalmology.Form `yaml:"ophthalmologySurgeries"`
}

// Load decodes fixtures, rejecting unknown keys.
func Load(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}

// LoadFile is Load for a path.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Creator is the create operation of a resource service.
type Creator[F any, R any] interface {
	Create(ctx context.Context, f F) (*R, error)
}

type Seeder struct {
	Hospitals Creator[hospital.Form, hospital.Hospital]
	Users     Creator[user.Form, user.User]
	Visits    Creator[officevisit.Form, officevisit.OfficeVisit]
	Surgeries Creator[ophthalmology.Form, ophthalmology.Surgery]
}

// Count tallies one resource kind.
type Count struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type Result struct {
	Hospitals Count `json:"hospitals"`
	Users     Count `json:"users"`
	Visits    Count `json:"officeVisits"`
	Surgeries Count `json:"ophthalmologySurgeries"`
}

func seed[F any, R any](ctx context.Context, kind string, c Creator[F, R], forms []F, n *Count) error {
	if len(forms) == 0 {
		return nil
	}
	if c == nil {
		return fmt.Errorf("seed %s: no service configured", kind)
	}
	for i, f := range forms {
		_, err := c.Create(ctx, f)
		switch {
		case err == nil:
			n.Created++
		case apperr.IsConflict(err):
			n.Skipped++
		default:
			return fmt.Errorf("seed %s #%d: %w", kind, i+1, err)
		}
	}
	return nil
}

// Seed creates every fixture as the system principal. Hospitals and users
// go first because visits reference them.
func (s *Seeder) Seed(ctx context.Context, fx *Fixtures) (Result, error) {
	ctx = auth.WithPrincipal(ctx, auth.System)

	var res Result
	if err := seed(ctx, "hospital", s.Hospitals, fx.Hospitals, &res.Hospitals); err != nil {
		return res, err
	}
	if err := seed(ctx, "user", s.Users, fx.Users, &res.Users); err != nil {
		return res, err
	}
	if err := seed(ctx, "office visit", s.Visits, fx.OfficeVisits, &res.Visits); err != nil {
		return res, err
	}
	if err := seed(ctx, "ophthalmology surgery", s.Surgeries, fx.Surgeries, &res.Surgeries); err != nil {
		return res, err
	}

	zerolog.Ctx(ctx).Info().
		Int("hospitals", res.Hospitals.Created).
		Int("users", res.Users.Created).
		Int("office_visits", res.Visits.Created).
		Int("surgeries", res.Surgeries.Created).
		Msg("fixtures seeded")
	return res, nil
}
