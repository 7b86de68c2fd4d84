package officevisit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/validation"
)

type VisitType string

const (
	GeneralCheckup       VisitType = "GENERAL_CHECKUP"
	GeneralOphthalmology VisitType = "GENERAL_OPHTHALMOLOGY"
	OphthalmologySurgery VisitType = "OPHTHALMOLOGY_SURGERY"
)

var HouseSmokingStatuses = []string{"NONAPPLICABLE", "NONSMOKING", "OUTDOOR", "INDOOR"}

var PatientSmokingStatuses = []string{"NONAPPLICABLE", "EVERYDAY", "SOMEDAYS", "FORMER", "NEVER", "UNKNOWN"}

// BasicHealthMetrics are the vitals taken at a visit. Every field is
// optional.
type BasicHealthMetrics struct {
	Height               *float64 `json:"height,omitempty"`
	Weight               *float64 `json:"weight,omitempty"`
	HeadCircumference    *float64 `json:"headCircumference,omitempty"`
	Systolic             *int     `json:"systolic,omitempty"`
	Diastolic            *int     `json:"diastolic,omitempty"`
	HDL                  *int     `json:"hdl,omitempty"`
	LDL                  *int     `json:"ldl,omitempty"`
	Tri                  *int     `json:"tri,omitempty"`
	HouseSmokingStatus   string   `json:"houseSmokingStatus,omitempty"`
	PatientSmokingStatus string   `json:"patientSmokingStatus,omitempty"`
}

func eqFloat(a, b *float64) bool { return (a == nil && b == nil) || (a != nil && b != nil && *a == *b) }
func eqInt(a, b *int) bool       { return (a == nil && b == nil) || (a != nil && b != nil && *a == *b) }

// Equal compares by value.
func (m BasicHealthMetrics) Equal(o BasicHealthMetrics) bool {
	return eqFloat(m.Height, o.Height) &&
		eqFloat(m.Weight, o.Weight) &&
		eqFloat(m.HeadCircumference, o.HeadCircumference) &&
		eqInt(m.Systolic, o.Systolic) &&
		eqInt(m.Diastolic, o.Diastolic) &&
		eqInt(m.HDL, o.HDL) &&
		eqInt(m.LDL, o.LDL) &&
		eqInt(m.Tri, o.Tri) &&
		m.HouseSmokingStatus == o.HouseSmokingStatus &&
		m.PatientSmokingStatus == o.PatientSmokingStatus
}

// Empty reports whether no metric was recorded.
func (m BasicHealthMetrics) Empty() bool {
	return m.Equal(BasicHealthMetrics{})
}

// OfficeVisit is one encounter between a patient and a clinician at a
// hospital. ID is assigned by the store unless the form carries one.
type OfficeVisit struct {
	ID           int64              `json:"id"`
	Patient      string             `json:"patient"`
	HCP          string             `json:"hcp"`
	Hospital     string             `json:"hospital"`
	Date         time.Time          `json:"date"`
	Type         VisitType          `json:"type"`
	Notes        string             `json:"notes"`
	PreScheduled bool               `json:"preScheduled"`
	Metrics      BasicHealthMetrics `json:"basicHealthMetrics"`
}

// Form is the flat request and response body for visits. IDs travel as
// numeric strings; a bare JSON number is accepted too.
type Form struct {
	ID           json.Number `json:"id,omitempty" yaml:"id,omitempty"`
	Patient      string      `json:"patient" yaml:"patient"`
	HCP          string      `json:"hcp" yaml:"hcp"`
	Hospital     string      `json:"hospital" yaml:"hospital"`
	Date         string      `json:"date" yaml:"date"`
	Type         string      `json:"type" yaml:"type"`
	Notes        string      `json:"notes,omitempty" yaml:"notes,omitempty"`
	PreScheduled bool        `json:"preScheduled" yaml:"preScheduled"`

	Height               *float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Weight               *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	HeadCircumference    *float64 `json:"headCircumference,omitempty" yaml:"headCircumference,omitempty"`
	Systolic             *int     `json:"systolic,omitempty" yaml:"systolic,omitempty"`
	Diastolic            *int     `json:"diastolic,omitempty" yaml:"diastolic,omitempty"`
	HDL                  *int     `json:"hdl,omitempty" yaml:"hdl,omitempty"`
	LDL                  *int     `json:"ldl,omitempty" yaml:"ldl,omitempty"`
	Tri                  *int     `json:"tri,omitempty" yaml:"tri,omitempty"`
	HouseSmokingStatus   string   `json:"houseSmokingStatus,omitempty" yaml:"houseSmokingStatus,omitempty"`
	PatientSmokingStatus string   `json:"patientSmokingStatus,omitempty" yaml:"patientSmokingStatus,omitempty"`
}

// BaseRules constrain every visit field except the visit type.
var BaseRules = validation.Rules{
	validation.Pattern("id", `^[0-9]{1,18}$`, "must be a positive integer"),
	validation.Required("patient"),
	validation.MaxLength("patient", 20),
	validation.Required("hcp"),
	validation.MaxLength("hcp", 20),
	validation.Required("hospital"),
	validation.MaxLength("hospital", 100),
	validation.Required("date"),
	validation.Timestamp("date"),
	validation.Required("type"),
	validation.MaxLength("notes", 255),
	validation.Range("height", 0.1, 999.9),
	validation.Range("weight", 0.1, 999.9),
	validation.Range("headCircumference", 0.1, 999.9),
	validation.Scale("height", 1),
	validation.Scale("weight", 1),
	validation.Scale("headCircumference", 1),
	validation.Range("systolic", 1, 999),
	validation.Range("diastolic", 1, 999),
	validation.Range("hdl", 0, 90),
	validation.Range("ldl", 0, 600),
	validation.Range("tri", 100, 600),
	validation.OneOf("houseSmokingStatus", HouseSmokingStatuses...),
	validation.OneOf("patientSmokingStatus", PatientSmokingStatuses...),
}

// Surgeries are written through their own resource.
var rules = validation.Merge(BaseRules, validation.Rules{
	validation.OneOf("type", string(GeneralCheckup), string(GeneralOphthalmology)),
})

func (f Form) Rules() validation.Rules { return rules }

func (f Form) Values() validation.Values {
	return validation.Values{
		"id":                   string(f.ID),
		"patient":              f.Patient,
		"hcp":                  f.HCP,
		"hospital":             f.Hospital,
		"date":                 f.Date,
		"type":                 f.Type,
		"notes":                f.Notes,
		"height":               f.Height,
		"weight":               f.Weight,
		"headCircumference":    f.HeadCircumference,
		"systolic":             f.Systolic,
		"diastolic":            f.Diastolic,
		"hdl":                  f.HDL,
		"ldl":                  f.LDL,
		"tri":                  f.Tri,
		"houseSmokingStatus":   f.HouseSmokingStatus,
		"patientSmokingStatus": f.PatientSmokingStatus,
	}
}

func (f Form) Build() (*OfficeVisit, error) {
	return f.Visit()
}

// Visit converts an already validated form.
func (f Form) Visit() (*OfficeVisit, error) {
	var id int64
	if f.ID != "" {
		n, err := strconv.ParseInt(string(f.ID), 10, 64)
		if err != nil {
			return nil, apperr.InvalidField("id", "pattern", "must be a positive integer")
		}
		id = n
	}
	date, err := time.Parse(time.RFC3339, f.Date)
	if err != nil {
		return nil, apperr.InvalidField("date", "timestamp", "must be an RFC 3339 timestamp")
	}
	return &OfficeVisit{
		ID:           id,
		Patient:      strings.TrimSpace(f.Patient),
		HCP:          strings.TrimSpace(f.HCP),
		Hospital:     strings.TrimSpace(f.Hospital),
		Date:         date.UTC(),
		Type:         VisitType(f.Type),
		Notes:        f.Notes,
		PreScheduled: f.PreScheduled,
		Metrics: BasicHealthMetrics{
			Height:               f.Height,
			Weight:               f.Weight,
			HeadCircumference:    f.HeadCircumference,
			Systolic:             f.Systolic,
			Diastolic:            f.Diastolic,
			HDL:                  f.HDL,
			LDL:                  f.LDL,
			Tri:                  f.Tri,
			HouseSmokingStatus:   f.HouseSmokingStatus,
			PatientSmokingStatus: f.PatientSmokingStatus,
		},
	}, nil
}

func FormOf(v *OfficeVisit) Form {
	m := v.Metrics
	f := Form{
		Patient:              v.Patient,
		HCP:                  v.HCP,
		Hospital:             v.Hospital,
		Date:                 v.Date.UTC().Format(time.RFC3339),
		Type:                 string(v.Type),
		Notes:                v.Notes,
		PreScheduled:         v.PreScheduled,
		Height:               m.Height,
		Weight:               m.Weight,
		HeadCircumference:    m.HeadCircumference,
		Systolic:             m.Systolic,
		Diastolic:            m.Diastolic,
		HDL:                  m.HDL,
		LDL:                  m.LDL,
		Tri:                  m.Tri,
		HouseSmokingStatus:   m.HouseSmokingStatus,
		PatientSmokingStatus: m.PatientSmokingStatus,
	}
	if v.ID != 0 {
		f.ID = json.Number(strconv.FormatInt(v.ID, 10))
	}
	return f
}

// FormatDate renders a visit date for audit details.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func describe(v *OfficeVisit) string {
	return fmt.Sprintf("office visit %d", v.ID)
}
