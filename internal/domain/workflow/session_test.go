package workflow

import (
	"testing"

	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
)

func testPatient() *patient.Patient {
	return &patient.Patient{
		ID:        "patient-001",
		Name:      "Alice Nguyen",
		Condition: "Psoriasis",
	}
}

func TestNewSessionStartsAtInformationStep(t *testing.T) {
	s := newSession(testPatient(), "Dr. Carter")

	if s.ActiveStep() != StepInformation {
		t.Errorf("active step = %d, want %d", s.ActiveStep(), StepInformation)
	}
	if s.Watermark() != StepInformation {
		t.Errorf("watermark = %d, want %d", s.Watermark(), StepInformation)
	}
	if s.Confirmed() {
		t.Error("new session should not be confirmed")
	}
	if s.Draft() == nil {
		t.Fatal("expected a draft even for a patient without a plan")
	}
	if len(s.Events()) != 1 || s.Events()[0].EventType != EventSessionStarted {
		t.Errorf("expected a single SessionStarted event, got %v", s.Events())
	}
}

func TestSelectMedicineFillsDefaults(t *testing.T) {
	s := newSession(testPatient(), "")

	s.SelectMedicine(catalog.Medicine{ID: 7, Name: "Methotrexate", Dosage: "10mg"})

	meds := s.Medications()
	if len(meds) != 1 {
		t.Fatalf("medications = %d, want 1", len(meds))
	}
	if meds[0].TimeToTake != DefaultTimeToTake {
		t.Errorf("timeToTake = %q, want %q", meds[0].TimeToTake, DefaultTimeToTake)
	}
	if meds[0].DurationDays != DefaultDurationDays {
		t.Errorf("durationDays = %d, want %d", meds[0].DurationDays, DefaultDurationDays)
	}
}

func TestSelectMedicineKeepsExplicitSchedule(t *testing.T) {
	s := newSession(testPatient(), "")

	s.SelectMedicine(catalog.Medicine{ID: 7, Name: "Methotrexate", TimeToTake: "12:00", DurationDays: 30})

	meds := s.Medications()
	if meds[0].TimeToTake != "12:00" {
		t.Errorf("timeToTake = %q, want explicit value preserved", meds[0].TimeToTake)
	}
	if meds[0].DurationDays != 30 {
		t.Errorf("durationDays = %d, want 30", meds[0].DurationDays)
	}
}

func TestMedicationsAreProjectionOfSelection(t *testing.T) {
	s := newSession(testPatient(), "")

	s.SelectMedicine(catalog.Medicine{ID: 1, Name: "Cortizone Cream"})
	s.SelectMedicine(catalog.Medicine{ID: 2, Name: "Cortizone Cream"}) // same display name
	s.SelectMedicine(catalog.Medicine{ID: 3, Name: "Tacrolimus"})

	if got := len(s.Medications()); got != 3 {
		t.Fatalf("medications = %d, want 3", got)
	}

	// Removing by catalog ID must not take out the different item that
	// happens to share a display name.
	if err := s.RemoveItem(KindMedicine, 1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	meds := s.Medications()
	if len(meds) != 2 {
		t.Fatalf("medications after removal = %d, want 2", len(meds))
	}
	if meds[0].Name != "Cortizone Cream" || meds[1].Name != "Tacrolimus" {
		t.Errorf("unexpected medications after removal: %+v", meds)
	}
}

func TestSelectThenRemoveRestoresSelection(t *testing.T) {
	s := newSession(testPatient(), "")

	s.SelectMedicine(catalog.Medicine{ID: 9, Name: "Adapalene", Dosage: "0.1%"})
	before := len(s.Draft().SelectedMedicines)

	s.SelectMedicine(catalog.Medicine{ID: 7, Name: "Tretinoin", Dosage: "0.025%"})
	if err := s.RemoveItem(KindMedicine, 7); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if got := len(s.Draft().SelectedMedicines); got != before {
		t.Fatalf("selected medicines = %d, want %d", got, before)
	}
	if got := len(s.Medications()); got != before {
		t.Fatalf("medications = %d, want %d", got, before)
	}
	if s.Draft().SelectedMedicines[0].ID != 9 {
		t.Errorf("remaining medicine ID = %d, want 9", s.Draft().SelectedMedicines[0].ID)
	}
}

func TestRemoveItemRemovesAllMatchingIDs(t *testing.T) {
	s := newSession(testPatient(), "")

	s.SelectTreatment(catalog.Treatment{ID: 4, Name: "Phototherapy"})
	s.SelectTreatment(catalog.Treatment{ID: 4, Name: "Phototherapy"})
	s.SelectTreatment(catalog.Treatment{ID: 5, Name: "Laser Therapy"})

	if err := s.RemoveItem(KindTreatment, 4); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if got := len(s.Draft().SelectedTreatments); got != 1 {
		t.Fatalf("selected treatments = %d, want 1", got)
	}
	if s.Draft().SelectedTreatments[0].ID != 5 {
		t.Errorf("remaining treatment ID = %d, want 5", s.Draft().SelectedTreatments[0].ID)
	}
}

func TestRemoveItemUnknownKind(t *testing.T) {
	s := newSession(testPatient(), "")
	if err := s.RemoveItem("supplement", 1); err != ErrUnknownItemKind {
		t.Errorf("err = %v, want ErrUnknownItemKind", err)
	}
}

func TestGoToStepRespectsWatermark(t *testing.T) {
	s := newSession(testPatient(), "")

	if err := s.GoToStep(StepReview); err != ErrInvalidTransition {
		t.Errorf("forward jump err = %v, want ErrInvalidTransition", err)
	}

	s.advance() // watermark 2
	s.advance() // watermark 3

	if err := s.GoToStep(StepInformation); err != nil {
		t.Fatalf("back navigation failed: %v", err)
	}
	if s.ActiveStep() != StepInformation {
		t.Errorf("active step = %d, want %d", s.ActiveStep(), StepInformation)
	}
	if s.Watermark() != StepSend {
		t.Errorf("watermark = %d, want %d after back navigation", s.Watermark(), StepSend)
	}

	// The watermark keeps forward navigation open to visited steps.
	if err := s.GoToStep(StepSend); err != nil {
		t.Errorf("return to send step failed: %v", err)
	}
}

func TestGoToStepOutOfRange(t *testing.T) {
	s := newSession(testPatient(), "")

	if err := s.GoToStep(0); err != ErrInvalidTransition {
		t.Errorf("step 0 err = %v, want ErrInvalidTransition", err)
	}
	if err := s.GoToStep(4); err != ErrInvalidTransition {
		t.Errorf("step 4 err = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvanceCapsAtSendStep(t *testing.T) {
	s := newSession(testPatient(), "")

	s.advance()
	s.advance()
	s.advance() // already at send step

	if s.ActiveStep() != StepSend {
		t.Errorf("active step = %d, want capped at %d", s.ActiveStep(), StepSend)
	}
	if s.Watermark() != StepSend {
		t.Errorf("watermark = %d, want %d", s.Watermark(), StepSend)
	}
}

func TestDerivedMedicationsEmptySelection(t *testing.T) {
	meds := DerivedMedications(nil)
	if meds == nil {
		t.Fatal("empty selection should still yield a schedule, got nil")
	}
	if len(meds) != 0 {
		t.Errorf("schedule = %v, want empty", meds)
	}
}
