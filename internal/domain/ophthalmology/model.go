package ophthalmology

import (
	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/platform/validation"
)

type SurgeryType string

const (
	CataractSurgery   SurgeryType = "CATARACT_SURGERY"
	LaserSurgery      SurgeryType = "LASER_SURGERY"
	RefractiveSurgery SurgeryType = "REFRACTIVE_SURGERY"
)

var SurgeryTypes = []string{string(CataractSurgery), string(LaserSurgery), string(RefractiveSurgery)}

// EyeMetrics are the per-eye measurements taken during surgery.
type EyeMetrics struct {
	VisualAcuityLeft  *int        `json:"visualAcuityLeft,omitempty"`
	VisualAcuityRight *int        `json:"visualAcuityRight,omitempty"`
	SphereLeft        *float64    `json:"sphereLeft,omitempty"`
	SphereRight       *float64    `json:"sphereRight,omitempty"`
	CylinderLeft      *float64    `json:"cylinderLeft,omitempty"`
	CylinderRight     *float64    `json:"cylinderRight,omitempty"`
	AxisLeft          *int        `json:"axisLeft,omitempty"`
	AxisRight         *int        `json:"axisRight,omitempty"`
	SurgeryType       SurgeryType `json:"surgeryType"`
}

// Surgery is an office visit of type OPHTHALMOLOGY_SURGERY with eye metrics.
type Surgery struct {
	officevisit.OfficeVisit
	Eye EyeMetrics `json:"eyeMetrics"`
}

// Form extends the visit form with the eye metric fields. The visit type may
// be omitted and is always stored as OPHTHALMOLOGY_SURGERY.
type Form struct {
	officevisit.Form `yaml:",inline"`

	VisualAcuityLeft  *int     `json:"visualAcuityLeft,omitempty" yaml:"visualAcuityLeft,omitempty"`
	VisualAcuityRight *int     `json:"visualAcuityRight,omitempty" yaml:"visualAcuityRight,omitempty"`
	SphereLeft        *float64 `json:"sphereLeft,omitempty" yaml:"sphereLeft,omitempty"`
	SphereRight       *float64 `json:"sphereRight,omitempty" yaml:"sphereRight,omitempty"`
	CylinderLeft      *float64 `json:"cylinderLeft,omitempty" yaml:"cylinderLeft,omitempty"`
	CylinderRight     *float64 `json:"cylinderRight,omitempty" yaml:"cylinderRight,omitempty"`
	AxisLeft          *int     `json:"axisLeft,omitempty" yaml:"axisLeft,omitempty"`
	AxisRight         *int     `json:"axisRight,omitempty" yaml:"axisRight,omitempty"`
	SurgeryType       string   `json:"surgeryType" yaml:"surgeryType"`
}

var rules = validation.Merge(officevisit.BaseRules, validation.Rules{
	validation.OneOf("type", string(officevisit.OphthalmologySurgery)),
	validation.Range("visualAcuityLeft", 20, 200),
	validation.Range("visualAcuityRight", 20, 200),
	validation.Range("sphereLeft", -20, 20),
	validation.Range("sphereRight", -20, 20),
	validation.Range("cylinderLeft", -20, 0),
	validation.Range("cylinderRight", -20, 0),
	validation.Scale("sphereLeft", 2),
	validation.Scale("sphereRight", 2),
	validation.Scale("cylinderLeft", 2),
	validation.Scale("cylinderRight", 2),
	validation.Range("axisLeft", 1, 180),
	validation.Range("axisRight", 1, 180),
	validation.Required("surgeryType"),
	validation.OneOf("surgeryType", SurgeryTypes...),
})

func (f Form) Rules() validation.Rules { return rules }

func (f Form) Values() validation.Values {
	v := f.Form.Values()
	if f.Type == "" {
		v["type"] = string(officevisit.OphthalmologySurgery)
	}
	v["visualAcuityLeft"] = f.VisualAcuityLeft
	v["visualAcuityRight"] = f.VisualAcuityRight
	v["sphereLeft"] = f.SphereLeft
	v["sphereRight"] = f.SphereRight
	v["cylinderLeft"] = f.CylinderLeft
	v["cylinderRight"] = f.CylinderRight
	v["axisLeft"] = f.AxisLeft
	v["axisRight"] = f.AxisRight
	v["surgeryType"] = f.SurgeryType
	return v
}

func (f Form) Build() (*Surgery, error) {
	visit, err := f.Form.Visit()
	if err != nil {
		return nil, err
	}
	visit.Type = officevisit.OphthalmologySurgery
	return &Surgery{
		OfficeVisit: *visit,
		Eye: EyeMetrics{
			VisualAcuityLeft:  f.VisualAcuityLeft,
			VisualAcuityRight: f.VisualAcuityRight,
			SphereLeft:        f.SphereLeft,
			SphereRight:       f.SphereRight,
			CylinderLeft:      f.CylinderLeft,
			CylinderRight:     f.CylinderRight,
			AxisLeft:          f.AxisLeft,
			AxisRight:         f.AxisRight,
			SurgeryType:       SurgeryType(f.SurgeryType),
		},
	}, nil
}

func FormOf(s *Surgery) Form {
	e := s.Eye
	return Form{
		Form:              officevisit.FormOf(&s.OfficeVisit),
		VisualAcuityLeft:  e.VisualAcuityLeft,
		VisualAcuityRight: e.VisualAcuityRight,
		SphereLeft:        e.SphereLeft,
		SphereRight:       e.SphereRight,
		CylinderLeft:      e.CylinderLeft,
		CylinderRight:     e.CylinderRight,
		AxisLeft:          e.AxisLeft,
		AxisRight:         e.AxisRight,
		SurgeryType:       string(e.SurgeryType),
	}
}
