// Package patient implements the patient record and its treatment plan.
package patient

import (
	"encoding/json"
	"time"

	"github.com/dermaflow/go-clinic/internal/catalog"
)

// Status is a display status for the patient list. It drives styling only;
// the workflow never branches on it.
type Status string

const (
	StatusSaved     Status = "Saved"
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusConfirmed Status = "Confirmed"
	StatusError     Status = "Error"
)

// Valid reports whether s is one of the known display statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSaved, StatusPending, StatusCompleted, StatusConfirmed, StatusError:
		return true
	}
	return false
}

// Medication is one line of the plan's medication schedule. Entries are
// derived from SelectedMedicines, never edited directly.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	TimeToTake   string `json:"timeToTake,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
}

// TreatmentPlan is the case plan attached to a patient. Catalog entries are
// copied by value at selection time and are not re-fetched afterwards.
type TreatmentPlan struct {
	Diagnosis          string              `json:"diagnosis,omitempty"`
	DiagnosisDetails   string              `json:"diagnosisDetails,omitempty"`
	Medications        []Medication        `json:"medications,omitempty"`
	NextSteps          []string            `json:"nextSteps,omitempty"`
	NextAppointment    string              `json:"next_appointment,omitempty"`
	Recommendations    []json.RawMessage   `json:"recommendations,omitempty"`
	AdditionalNotes    string              `json:"additional_notes,omitempty"`
	SelectedTreatments []catalog.Treatment `json:"selectedTreatments,omitempty"`
	SelectedMedicines  []catalog.Medicine  `json:"selectedMedicines,omitempty"`
}

// Patient is the clinical record.
type Patient struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	Condition     string         `json:"condition,omitempty"`
	LastVisit     string         `json:"lastVisit,omitempty"`
	Status        Status         `json:"status,omitempty"`
	TreatmentPlan *TreatmentPlan `json:"treatmentPlan,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// Plan returns the embedded plan, allocating an empty one if absent.
func (p *Patient) Plan() *TreatmentPlan {
	if p.TreatmentPlan == nil {
		p.TreatmentPlan = &TreatmentPlan{}
	}
	return p.TreatmentPlan
}

// Clone returns a deep copy of the treatment plan. The nil/empty
// distinction of each list survives the copy: nil means the field is not
// set, empty means it was cleared, and a merge treats the two differently.
func (tp *TreatmentPlan) Clone() *TreatmentPlan {
	if tp == nil {
		return &TreatmentPlan{}
	}
	out := *tp
	out.Medications = cloneSlice(tp.Medications)
	out.NextSteps = cloneSlice(tp.NextSteps)
	out.Recommendations = cloneSlice(tp.Recommendations)
	out.SelectedTreatments = cloneSlice(tp.SelectedTreatments)
	out.SelectedMedicines = cloneSlice(tp.SelectedMedicines)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
