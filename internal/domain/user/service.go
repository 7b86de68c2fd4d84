package user

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/db"
	"github.com/itrust/itrust/internal/platform/workflow"
)

var errBadCredentials = apperr.Unauthorized("invalid username or password")

// dummyHash is compared against when the username is unknown so that a
// failed login takes the same time either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type Service struct {
	wf  *workflow.Workflow[User, string]
	rec audit.Recorder
}

func NewService(repo Repository, tx db.Transactor, rec audit.Recorder) *Service {
	wf := workflow.New[User, string](repo, tx, rec, workflow.Hooks[User, string]{
		Prefix: "USER",
		Noun:   "user",
		Key:    func(u *User) string { return u.Username },
		Target: func(u *User) string { return u.Username },
		Carry: func(old, u *User) {
			if u.PasswordHash == "" {
				u.PasswordHash = old.PasswordHash
			}
			if u.keepEnabled {
				u.Enabled = old.Enabled
				u.keepEnabled = false
			}
		},
		DeleteDetail: func(u *User) string {
			return "Deleted user with username " + u.Username
		},
	})
	return &Service{wf: wf, rec: rec}
}

func (s *Service) Create(ctx context.Context, f Form) (*User, error) {
	f.update = false
	return s.wf.Create(ctx, f)
}

func (s *Service) Get(ctx context.Context, username string) (*User, error) {
	return s.wf.Read(ctx, username)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.wf.List(ctx)
}

func (s *Service) Update(ctx context.Context, username string, f Form) (*User, error) {
	f.update = true
	return s.wf.Update(ctx, username, f)
}

// Delete removes the user and returns the username.
func (s *Service) Delete(ctx context.Context, username string) (string, error) {
	u, err := s.wf.Delete(ctx, username)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Roles returns the roles held by username, or a NotFound error. It is used
// for reference checks and is not audited.
func (s *Service) Roles(ctx context.Context, username string) ([]auth.Role, error) {
	u, err := s.wf.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Roles, nil
}

// Authenticate verifies a username and password and returns the principal
// to issue a token for. Every attempt is audited.
func (s *Service) Authenticate(ctx context.Context, username, password string) (auth.Principal, error) {
	u, err := s.wf.Lookup(ctx, username)
	if err != nil && !apperr.IsNotFound(err) {
		return auth.Principal{}, err
	}

	hash := dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil

	if u == nil || !match || !u.Enabled {
		s.rec.Record(ctx, audit.Entry{Type: audit.LoginFailure, Actor: username, Target: username})
		return auth.Principal{}, errBadCredentials
	}

	s.rec.Record(ctx, audit.Entry{Type: audit.LoginSuccess, Actor: username, Target: username})
	return u.Principal(), nil
}
