package patient

import (
	"encoding/json"
	"testing"

	"github.com/dermaflow/go-clinic/internal/catalog"
)

func TestMergeKeepsBaseForEmptyFields(t *testing.T) {
	base := Patient{
		ID:        "p-1",
		Name:      "Alice Nguyen",
		Phone:     "555-0100",
		Condition: "Psoriasis",
		Status:    StatusSaved,
	}

	out := Merge(base, Patient{Phone: "555-0199"})

	if out.Phone != "555-0199" {
		t.Errorf("phone = %q, want updated", out.Phone)
	}
	if out.Name != "Alice Nguyen" || out.Condition != "Psoriasis" || out.Status != StatusSaved {
		t.Errorf("empty update fields must not clear base: %+v", out)
	}
}

func TestMergeDoesNotMutateArguments(t *testing.T) {
	base := Patient{
		ID:   "p-1",
		Name: "Alice Nguyen",
		TreatmentPlan: &TreatmentPlan{
			Diagnosis: "Psoriasis",
			NextSteps: []string{"follow-up"},
		},
	}
	upd := Patient{TreatmentPlan: &TreatmentPlan{Diagnosis: "Eczema"}}

	out := Merge(base, upd)

	if base.TreatmentPlan.Diagnosis != "Psoriasis" {
		t.Error("base plan mutated by merge")
	}
	if out.TreatmentPlan.Diagnosis != "Eczema" {
		t.Errorf("merged diagnosis = %q", out.TreatmentPlan.Diagnosis)
	}
	if len(out.TreatmentPlan.NextSteps) != 1 {
		t.Error("base plan fields lost in merge")
	}

	out.TreatmentPlan.NextSteps[0] = "changed"
	if base.TreatmentPlan.NextSteps[0] != "follow-up" {
		t.Error("merged plan shares slice storage with base")
	}
}

func TestMergeClonesBasePlanWhenUpdateHasNone(t *testing.T) {
	base := Patient{
		ID:            "p-1",
		TreatmentPlan: &TreatmentPlan{Diagnosis: "Psoriasis"},
	}

	out := Merge(base, Patient{Name: "New Name"})

	if out.TreatmentPlan == base.TreatmentPlan {
		t.Error("merged patient must not alias the base plan")
	}
	if out.TreatmentPlan.Diagnosis != "Psoriasis" {
		t.Errorf("plan diagnosis = %q, want carried over", out.TreatmentPlan.Diagnosis)
	}
}

func TestMergePlanSlicesReplaceWholesale(t *testing.T) {
	base := &TreatmentPlan{
		NextSteps: []string{"a", "b"},
		SelectedMedicines: []catalog.Medicine{
			{ID: 1, Name: "Cortizone Cream"},
		},
	}
	upd := &TreatmentPlan{
		NextSteps: []string{"c"},
	}

	out := MergePlan(base, upd)

	if len(out.NextSteps) != 1 || out.NextSteps[0] != "c" {
		t.Errorf("next steps = %v, want wholesale replacement", out.NextSteps)
	}
	if len(out.SelectedMedicines) != 1 {
		t.Errorf("nil update slice must keep base selection: %v", out.SelectedMedicines)
	}
}

func TestMergePlanEmptySliceClears(t *testing.T) {
	base := &TreatmentPlan{
		Medications: []Medication{{Name: "Tretinoin", Dosage: "0.025%"}},
		SelectedMedicines: []catalog.Medicine{
			{ID: 7, Name: "Tretinoin", Dosage: "0.025%"},
		},
	}
	upd := &TreatmentPlan{
		Medications:       []Medication{},
		SelectedMedicines: []catalog.Medicine{},
	}

	out := MergePlan(base, upd)

	if len(out.Medications) != 0 {
		t.Errorf("medications = %v, want cleared by empty update", out.Medications)
	}
	if len(out.SelectedMedicines) != 0 {
		t.Errorf("selected medicines = %v, want cleared by empty update", out.SelectedMedicines)
	}
}

func TestMergePlanDoesNotAliasRecommendations(t *testing.T) {
	upd := &TreatmentPlan{
		Recommendations: []json.RawMessage{json.RawMessage(`{"note":"spf"}`)},
	}

	out := MergePlan(&TreatmentPlan{}, upd)
	out.Recommendations[0] = json.RawMessage(`{}`)

	if string(upd.Recommendations[0]) != `{"note":"spf"}` {
		t.Error("merged plan shares recommendations storage with the update")
	}
}

func TestMergePlanNilArguments(t *testing.T) {
	out := MergePlan(nil, nil)
	if out == nil {
		t.Fatal("expected non-nil plan")
	}

	out = MergePlan(nil, &TreatmentPlan{Diagnosis: "Acne"})
	if out.Diagnosis != "Acne" {
		t.Errorf("diagnosis = %q", out.Diagnosis)
	}
}

func TestCloneDeepCopies(t *testing.T) {
	orig := &TreatmentPlan{
		Diagnosis: "Psoriasis",
		Medications: []Medication{
			{Name: "Cortizone Cream", Dosage: "1%"},
		},
		SelectedTreatments: []catalog.Treatment{{ID: 1, Name: "Phototherapy"}},
	}

	cp := orig.Clone()
	cp.Medications[0].Name = "changed"
	cp.SelectedTreatments[0].Name = "changed"

	if orig.Medications[0].Name != "Cortizone Cream" {
		t.Error("clone shares medications storage")
	}
	if orig.SelectedTreatments[0].Name != "Phototherapy" {
		t.Error("clone shares treatments storage")
	}
}

func TestCloneKeepsEmptySlices(t *testing.T) {
	orig := &TreatmentPlan{
		Medications:       []Medication{},
		SelectedMedicines: []catalog.Medicine{},
	}

	cp := orig.Clone()

	if cp.Medications == nil {
		t.Error("empty medications collapsed to nil")
	}
	if cp.SelectedMedicines == nil {
		t.Error("empty selected medicines collapsed to nil")
	}
	if cp.NextSteps != nil {
		t.Error("nil next steps must stay nil")
	}
}

func TestCloneNilPlan(t *testing.T) {
	var tp *TreatmentPlan
	if cp := tp.Clone(); cp == nil {
		t.Fatal("nil plan must clone to an empty plan")
	}
}
