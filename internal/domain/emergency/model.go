package emergency

import (
	"time"

	"github.com/itrust/itrust/internal/domain/officevisit"
)

// Record is the emergency view of a patient: the vitals from their most
// recent visit that recorded any.
type Record struct {
	Patient   string                         `json:"patient"`
	VisitID   int64                          `json:"visitId"`
	VisitDate time.Time                      `json:"visitDate"`
	VisitType officevisit.VisitType          `json:"visitType"`
	Hospital  string                         `json:"hospital"`
	HCP       string                         `json:"hcp"`
	Metrics   officevisit.BasicHealthMetrics `json:"basicHealthMetrics"`
}

// RecordOf builds a Record from the visit it was read from.
func RecordOf(v *officevisit.OfficeVisit) *Record {
	return &Record{
		Patient:   v.Patient,
		VisitID:   v.ID,
		VisitDate: v.Date,
		VisitType: v.Type,
		Hospital:  v.Hospital,
		HCP:       v.HCP,
		Metrics:   v.Metrics,
	}
}
