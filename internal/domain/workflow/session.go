package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
)

// Workflow steps, in completion order.
const (
	StepInformation = 1
	StepReview      = 2
	StepSend        = 3
)

// Defaults applied to a medicine when it is copied into the plan without
// per-plan annotations.
const (
	DefaultTimeToTake   = "08:00, 20:00"
	DefaultDurationDays = 14
)

// ItemKind distinguishes the two catalog selection lists.
type ItemKind string

const (
	KindTreatment ItemKind = "treatment"
	KindMedicine  ItemKind = "medicine"
)

// Session is one traversal of the three-step case workflow for a single
// patient. It is the sole owner of the treatment plan draft: presentation
// code reads and writes the plan only through the session, and the engine
// folds the draft into the patient record at each step boundary.
//
// A session is not safe for concurrent use; the engine assumes one active
// editor per patient.
type Session struct {
	id        string
	doctor    string
	patient   *patient.Patient
	draft     *patient.TreatmentPlan
	active    int
	watermark int
	confirmed bool
	done      bool
	createdAt time.Time
	updatedAt time.Time
	events    []*Event
}

func newSession(p *patient.Patient, doctor string) *Session {
	now := time.Now().UTC()
	s := &Session{
		id:        uuid.New().String(),
		doctor:    doctor,
		patient:   p,
		draft:     p.TreatmentPlan.Clone(),
		active:    StepInformation,
		watermark: StepInformation,
		createdAt: now,
		updatedAt: now,
	}
	s.record(EventSessionStarted, nil)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// PatientID returns the ID of the patient under edit.
func (s *Session) PatientID() string { return s.patient.ID }

// Doctor returns the doctor name attached at session start.
func (s *Session) Doctor() string { return s.doctor }

// Patient returns the patient record as of the last commit point.
func (s *Session) Patient() *patient.Patient { return s.patient }

// Draft returns the mutable treatment plan draft.
func (s *Session) Draft() *patient.TreatmentPlan { return s.draft }

// ActiveStep returns the currently displayed step.
func (s *Session) ActiveStep() int { return s.active }

// Watermark returns the furthest step ever reached. It never decreases.
func (s *Session) Watermark() int { return s.watermark }

// Confirmed reports whether the operator confirmed the final send.
func (s *Session) Confirmed() bool { return s.confirmed }

// Terminated reports whether the session finished via a successful send.
func (s *Session) Terminated() bool { return s.done }

// Events returns the session's event log.
func (s *Session) Events() []*Event { return s.events }

// Confirm sets the final-send confirmation flag.
func (s *Session) Confirm(v bool) {
	s.confirmed = v
	s.touch()
}

// GoToStep moves the displayed step to any step at or below the watermark.
// It is a navigation convenience: the watermark and the draft are untouched.
func (s *Session) GoToStep(target int) error {
	if s.done {
		return ErrSessionTerminated
	}
	if target < StepInformation || target > StepSend || target > s.watermark {
		return ErrInvalidTransition
	}
	if target == s.active {
		return nil
	}
	s.active = target
	s.record(EventStepRevisited, &StepCompletedData{
		ActiveStep: s.active,
		Watermark:  s.watermark,
	})
	s.touch()
	return nil
}

// SelectTreatment appends a treatment to the draft. Duplicates are allowed.
func (s *Session) SelectTreatment(t catalog.Treatment) {
	s.draft.SelectedTreatments = append(s.draft.SelectedTreatments, t)
	s.record(EventItemSelected, &ItemSelectedData{Kind: KindTreatment, ItemID: t.ID, Name: t.Name})
	s.touch()
}

// SelectMedicine appends a medicine to the draft, filling in the schedule
// defaults when the caller left them empty. The medication list follows via
// projection; it is never appended to directly.
func (s *Session) SelectMedicine(m catalog.Medicine) {
	if m.TimeToTake == "" {
		m.TimeToTake = DefaultTimeToTake
	}
	if m.DurationDays == 0 {
		m.DurationDays = DefaultDurationDays
	}
	s.draft.SelectedMedicines = append(s.draft.SelectedMedicines, m)
	s.record(EventItemSelected, &ItemSelectedData{Kind: KindMedicine, ItemID: m.ID, Name: m.Name})
	s.touch()
}

// RemoveItem removes every selected entry with the given catalog ID from
// the list for kind. Medications are derived from the selection, so removal
// by ID cannot take out an unrelated entry that shares a name.
func (s *Session) RemoveItem(kind ItemKind, itemID int) error {
	var removed int
	switch kind {
	case KindTreatment:
		kept := s.draft.SelectedTreatments[:0]
		for _, t := range s.draft.SelectedTreatments {
			if t.ID == itemID {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		s.draft.SelectedTreatments = kept
	case KindMedicine:
		kept := s.draft.SelectedMedicines[:0]
		for _, m := range s.draft.SelectedMedicines {
			if m.ID == itemID {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		s.draft.SelectedMedicines = kept
	default:
		return ErrUnknownItemKind
	}

	s.record(EventItemRemoved, &ItemRemovedData{Kind: kind, ItemID: itemID, Removed: removed})
	s.touch()
	return nil
}

// Medications returns the medication schedule derived from the current
// selection.
func (s *Session) Medications() []patient.Medication {
	return DerivedMedications(s.draft.SelectedMedicines)
}

// DerivedMedications projects the selected medicines onto the plan's
// medication schedule. The schedule is a pure view of the selection: the
// two can never diverge. The result is never nil; an empty selection
// yields an empty schedule so a merge clears the stored one.
func DerivedMedications(selected []catalog.Medicine) []patient.Medication {
	meds := make([]patient.Medication, 0, len(selected))
	for _, m := range selected {
		meds = append(meds, patient.Medication{
			Name:         m.Name,
			Dosage:       m.Dosage,
			TimeToTake:   m.TimeToTake,
			DurationDays: m.DurationDays,
		})
	}
	return meds
}

// advance moves to the next step after a successful commit, capped at the
// send step, and raises the watermark when new ground is reached.
func (s *Session) advance() {
	completed := s.active
	if s.active < StepSend {
		s.active++
	}
	if s.active > s.watermark {
		s.watermark = s.active
	}
	s.record(EventStepCompleted, &StepCompletedData{
		CompletedStep: completed,
		ActiveStep:    s.active,
		Watermark:     s.watermark,
	})
	s.touch()
}

func (s *Session) record(eventType EventType, data any) {
	s.events = append(s.events, newEvent(s.id, s.patient.ID, eventType, data))
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}
