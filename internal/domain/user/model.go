package user

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/validation"
)

// User is an account that can sign in. Username is the natural key.
type User struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Roles        []auth.Role `json:"roles"`
	Enabled      bool        `json:"enabled"`

	// keepEnabled marks an update that did not mention enabled.
	keepEnabled bool
}

// Principal returns the identity u acts under once authenticated.
func (u *User) Principal() auth.Principal {
	return auth.Principal{Username: u.Username, Roles: append([]auth.Role(nil), u.Roles...)}
}

func (u *User) HasRole(r auth.Role) bool {
	return u.Principal().HasRole(r)
}

// hashCost is lowered by tests.
var hashCost = bcrypt.DefaultCost

// Form is the request body for user writes. Password is required when
// creating and optional when updating, where an empty password keeps the
// current one.
type Form struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Role     string `json:"role" yaml:"role"`
	Enabled  *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	update bool
}

var (
	baseRules = validation.Rules{
		validation.Required("username"),
		validation.MaxLength("username", 20),
		validation.Pattern("username", `^[A-Za-z0-9_.-]+$`, "may only contain letters, digits, '.', '_' and '-'"),
		validation.Required("role"),
		validation.OneOf("role", auth.RoleNames()...),
	}
	// bcrypt rejects passwords over 72 bytes.
	passwordLength = validation.ByteLength("password", 6, 72)

	createRules = validation.Merge(baseRules, validation.Rules{validation.Required("password"), passwordLength})
	updateRules = validation.Merge(baseRules, validation.Rules{passwordLength})
)

func (f Form) Rules() validation.Rules {
	if f.update {
		return updateRules
	}
	return createRules
}

func (f Form) Values() validation.Values {
	return validation.Values{
		"username": f.Username,
		"password": f.Password,
		"role":     f.Role,
	}
}

func (f Form) Build() (*User, error) {
	u := &User{
		Username: strings.TrimSpace(f.Username),
		Roles:    []auth.Role{auth.Role(f.Role)},
		Enabled:  f.Enabled == nil || *f.Enabled,

		keepEnabled: f.update && f.Enabled == nil,
	}
	if f.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	return u, nil
}

// FormOf projects u back to a form. The password is never projected.
func FormOf(u *User) Form {
	f := Form{Username: u.Username, Enabled: &u.Enabled}
	if len(u.Roles) > 0 {
		f.Role = string(u.Roles[0])
	}
	return f
}
