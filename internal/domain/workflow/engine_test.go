package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
)

type fakeStore struct {
	patients map[string]*patient.Patient
	failNext bool
	updates  int
}

func newFakeStore(ps ...*patient.Patient) *fakeStore {
	s := &fakeStore{patients: make(map[string]*patient.Patient)}
	for _, p := range ps {
		s.patients[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*patient.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) Update(_ context.Context, id string, upd patient.Patient) (*patient.Patient, error) {
	if s.failNext {
		s.failNext = false
		return nil, errors.New("connection refused")
	}
	base, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	merged := patient.Merge(*base, upd)
	merged.ID = id
	s.patients[id] = &merged
	s.updates++
	cp := merged
	return &cp, nil
}

type fakeSender struct {
	failNext bool
	sent     []*SendRequest
}

func (f *fakeSender) Send(_ context.Context, req *SendRequest) error {
	if f.failNext {
		f.failNext = false
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, req)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *fakeSender) {
	t.Helper()
	store := newFakeStore(&patient.Patient{
		ID:        "patient-001",
		Name:      "Alice Nguyen",
		Condition: "Psoriasis",
	})
	sender := &fakeSender{}
	return NewEngine(store, sender, nil), store, sender
}

func TestLoadSessionFetchesWhenNotPreloaded(t *testing.T) {
	e, _, _ := newTestEngine(t)

	s, err := e.LoadSession(context.Background(), "patient-001", nil, "Dr. Carter")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.Patient().Name != "Alice Nguyen" {
		t.Errorf("patient name = %q, want fetched record", s.Patient().Name)
	}
	if s.Doctor() != "Dr. Carter" {
		t.Errorf("doctor = %q, want Dr. Carter", s.Doctor())
	}

	if _, ok := e.Session(s.ID()); !ok {
		t.Error("session not registered")
	}
}

func TestLoadSessionUsesPreloadedPatient(t *testing.T) {
	e, _, _ := newTestEngine(t)

	pre := &patient.Patient{ID: "patient-002", Name: "Ben Ortiz"}
	s, err := e.LoadSession(context.Background(), "patient-002", pre, "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.Patient().Name != "Ben Ortiz" {
		t.Error("preloaded patient should be used without a store fetch")
	}
}

func TestLoadSessionUnknownPatient(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.LoadSession(context.Background(), "missing", nil, "")
	if !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("err = %v, want patient.ErrNotFound", err)
	}
}

func TestCompleteStepPersistsAndAdvances(t *testing.T) {
	e, store, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	upd := patient.Patient{
		Phone: "555-0101",
		TreatmentPlan: &patient.TreatmentPlan{
			Diagnosis: "Plaque psoriasis",
		},
	}
	if err := e.CompleteStep(context.Background(), s, upd); err != nil {
		t.Fatalf("complete step failed: %v", err)
	}

	if s.ActiveStep() != StepReview {
		t.Errorf("active step = %d, want %d", s.ActiveStep(), StepReview)
	}
	if store.updates != 1 {
		t.Errorf("store updates = %d, want 1", store.updates)
	}

	persisted := store.patients["patient-001"]
	if persisted.Phone != "555-0101" {
		t.Errorf("phone = %q, want merged update", persisted.Phone)
	}
	if persisted.Name != "Alice Nguyen" {
		t.Errorf("name = %q, empty update field must not clear it", persisted.Name)
	}
	if persisted.TreatmentPlan == nil || persisted.TreatmentPlan.Diagnosis != "Plaque psoriasis" {
		t.Errorf("plan not persisted: %+v", persisted.TreatmentPlan)
	}
}

func TestCompleteStepEveryBoundaryPersists(t *testing.T) {
	e, store, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	for i := 0; i < 3; i++ {
		if err := e.CompleteStep(context.Background(), s, patient.Patient{}); err != nil {
			t.Fatalf("complete step %d failed: %v", i+1, err)
		}
	}

	if store.updates != 3 {
		t.Errorf("store updates = %d, want one write per boundary", store.updates)
	}
	if s.ActiveStep() != StepSend {
		t.Errorf("active step = %d, want capped at %d", s.ActiveStep(), StepSend)
	}
}

func TestCompleteStepFailureLeavesStateForRetry(t *testing.T) {
	e, store, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	store.failNext = true
	upd := patient.Patient{TreatmentPlan: &patient.TreatmentPlan{Diagnosis: "Eczema"}}

	err := e.CompleteStep(context.Background(), s, upd)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("err = %v, want ErrPersistFailed", err)
	}

	if s.ActiveStep() != StepInformation {
		t.Errorf("active step = %d, failed write must not advance", s.ActiveStep())
	}
	if s.Draft().Diagnosis != "Eczema" {
		t.Error("draft should keep the folded edits after a failed write")
	}

	// Retry with an empty update succeeds using the retained draft.
	if err := e.CompleteStep(context.Background(), s, patient.Patient{}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if store.patients["patient-001"].TreatmentPlan.Diagnosis != "Eczema" {
		t.Error("retry did not persist the retained draft")
	}
	if s.ActiveStep() != StepReview {
		t.Errorf("active step after retry = %d, want %d", s.ActiveStep(), StepReview)
	}
}

func TestCompleteStepRecomputesMedications(t *testing.T) {
	e, store, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	s.SelectMedicine(catalog.Medicine{ID: 1, Name: "Cortizone Cream", Dosage: "1%"})

	if err := e.CompleteStep(context.Background(), s, patient.Patient{}); err != nil {
		t.Fatalf("complete step failed: %v", err)
	}

	plan := store.patients["patient-001"].TreatmentPlan
	if len(plan.Medications) != 1 || plan.Medications[0].Name != "Cortizone Cream" {
		t.Errorf("medications not derived from selection: %+v", plan.Medications)
	}
	if plan.Medications[0].TimeToTake != DefaultTimeToTake {
		t.Errorf("timeToTake = %q, want default applied", plan.Medications[0].TimeToTake)
	}
}

func TestCompleteStepPersistsEmptiedSelection(t *testing.T) {
	e, store, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	s.SelectMedicine(catalog.Medicine{ID: 7, Name: "Tretinoin", Dosage: "0.025%"})
	if err := e.CompleteStep(context.Background(), s, patient.Patient{}); err != nil {
		t.Fatalf("complete step failed: %v", err)
	}

	// Go back, drop the only medicine, and commit again. The store runs a
	// read-merge-write, so the cleared lists must survive the round trip
	// instead of being shadowed by the previously stored ones.
	if err := s.GoToStep(StepInformation); err != nil {
		t.Fatalf("go to step failed: %v", err)
	}
	if err := s.RemoveItem(KindMedicine, 7); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := e.CompleteStep(context.Background(), s, patient.Patient{}); err != nil {
		t.Fatalf("complete step failed: %v", err)
	}

	plan := store.patients["patient-001"].TreatmentPlan
	if plan == nil {
		t.Fatal("stored patient has no treatment plan")
	}
	if got := len(plan.SelectedMedicines); got != 0 {
		t.Errorf("persisted selectedMedicines = %d, want 0", got)
	}
	if got := len(plan.Medications); got != 0 {
		t.Errorf("persisted medications = %d, want 0", got)
	}
}

func TestFinishRequiresSendStepAndConfirmation(t *testing.T) {
	e, _, sender := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	if err := e.Finish(context.Background(), s); !errors.Is(err, ErrNotAtSendStep) {
		t.Errorf("err = %v, want ErrNotAtSendStep", err)
	}

	e.CompleteStep(context.Background(), s, patient.Patient{})
	e.CompleteStep(context.Background(), s, patient.Patient{})

	if err := e.Finish(context.Background(), s); !errors.Is(err, ErrNotConfirmed) {
		t.Errorf("err = %v, want ErrNotConfirmed", err)
	}

	s.Confirm(true)
	if err := e.Finish(context.Background(), s); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].PatientID != "patient-001" {
		t.Errorf("send patientId = %q", sender.sent[0].PatientID)
	}
	if !s.Terminated() {
		t.Error("session should be terminated after a successful send")
	}
	if _, ok := e.Session(s.ID()); ok {
		t.Error("session should be dropped from the registry")
	}
}

func TestFinishFailureKeepsSessionForRetry(t *testing.T) {
	e, _, sender := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	e.CompleteStep(context.Background(), s, patient.Patient{})
	e.CompleteStep(context.Background(), s, patient.Patient{})
	s.Confirm(true)

	sender.failNext = true
	if err := e.Finish(context.Background(), s); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}

	if s.Terminated() {
		t.Error("failed send must not terminate the session")
	}
	if s.ActiveStep() != StepSend {
		t.Errorf("active step = %d, want still at send step", s.ActiveStep())
	}
	if _, ok := e.Session(s.ID()); !ok {
		t.Error("session must stay registered for retry")
	}

	if err := e.Finish(context.Background(), s); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent = %d, want exactly one delivery", len(sender.sent))
	}
}

func TestFinishOnTerminatedSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	s, _ := e.LoadSession(context.Background(), "patient-001", nil, "")

	e.CompleteStep(context.Background(), s, patient.Patient{})
	e.CompleteStep(context.Background(), s, patient.Patient{})
	s.Confirm(true)
	if err := e.Finish(context.Background(), s); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	if err := e.Finish(context.Background(), s); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("err = %v, want ErrSessionTerminated", err)
	}
	if err := e.CompleteStep(context.Background(), s, patient.Patient{}); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("err = %v, want ErrSessionTerminated", err)
	}
}

func TestConcurrentSessionRegistry(t *testing.T) {
	e, store, _ := newTestEngine(t)
	for i := 0; i < 20; i++ {
		store.patients[fmt.Sprintf("p-%d", i)] = &patient.Patient{ID: fmt.Sprintf("p-%d", i)}
	}

	done := make(chan string, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			s, err := e.LoadSession(context.Background(), fmt.Sprintf("p-%d", i), nil, "")
			if err != nil {
				done <- ""
				return
			}
			done <- s.ID()
		}(i)
	}

	for i := 0; i < 20; i++ {
		id := <-done
		if id == "" {
			t.Fatal("concurrent load failed")
		}
		if _, ok := e.Session(id); !ok {
			t.Errorf("session %s not registered", id)
		}
	}
}
