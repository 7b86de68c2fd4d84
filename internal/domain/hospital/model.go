package hospital

import (
	"strings"

	"github.com/itrust/itrust/internal/platform/validation"
)

// Hospital maps to the hospital table. Name is the natural key.
type Hospital struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// States are the two-letter codes of US states, DC and inhabited territories.
var States = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "DC", "FL", "GA", "HI", "ID", "IL", "IN",
	"IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH",
	"NJ", "NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT",
	"VT", "VA", "WA", "WV", "WI", "WY", "AS", "GU", "MP", "PR", "VI",
}

// Form is the request body for hospital writes.
type Form struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	State   string `json:"state" yaml:"state"`
	Zip     string `json:"zip" yaml:"zip"`
}

var rules = validation.Rules{
	validation.Required("name"),
	validation.MaxLength("name", 100),
	validation.Required("address"),
	validation.MaxLength("address", 100),
	validation.Required("state"),
	validation.OneOf("state", States...),
	validation.Required("zip"),
	validation.Pattern("zip", `^\d{5}(-\d{4})?$`, "must be a 5 or 9 digit zip code"),
}

func (f Form) Rules() validation.Rules { return rules }

func (f Form) Values() validation.Values {
	return validation.Values{
		"name":    f.Name,
		"address": f.Address,
		"state":   f.State,
		"zip":     f.Zip,
	}
}

func (f Form) Build() (*Hospital, error) {
	return &Hospital{
		Name:    strings.TrimSpace(f.Name),
		Address: strings.TrimSpace(f.Address),
		State:   f.State,
		Zip:     f.Zip,
	}, nil
}

func FormOf(h *Hospital) Form {
	return Form{Name: h.Name, Address: h.Address, State: h.State, Zip: h.Zip}
}
