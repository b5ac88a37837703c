package patient

// Merge folds a partial update into base and returns the result. The merge
// is shallow at the top level: a field in upd replaces the base field only
// when set. The treatment plan is merged one level deeper via MergePlan.
// Neither argument is mutated.
func Merge(base Patient, upd Patient) Patient {
	out := base

	if upd.Name != "" {
		out.Name = upd.Name
	}
	if upd.Phone != "" {
		out.Phone = upd.Phone
	}
	if upd.Email != "" {
		out.Email = upd.Email
	}
	if upd.Condition != "" {
		out.Condition = upd.Condition
	}
	if upd.LastVisit != "" {
		out.LastVisit = upd.LastVisit
	}
	if upd.Status != "" {
		out.Status = upd.Status
	}
	if upd.TreatmentPlan != nil {
		merged := MergePlan(base.TreatmentPlan.Clone(), upd.TreatmentPlan)
		out.TreatmentPlan = merged
	} else if base.TreatmentPlan != nil {
		out.TreatmentPlan = base.TreatmentPlan.Clone()
	}

	return out
}

// MergePlan folds upd into base field by field. Scalar fields replace when
// set; slice fields replace wholesale when non-nil, since the caller always
// carries the complete list. A non-nil empty slice clears the stored list;
// only nil leaves it alone. base is returned (mutated) for convenience.
func MergePlan(base *TreatmentPlan, upd *TreatmentPlan) *TreatmentPlan {
	if base == nil {
		base = &TreatmentPlan{}
	}
	if upd == nil {
		return base
	}

	if upd.Diagnosis != "" {
		base.Diagnosis = upd.Diagnosis
	}
	if upd.DiagnosisDetails != "" {
		base.DiagnosisDetails = upd.DiagnosisDetails
	}
	if upd.NextAppointment != "" {
		base.NextAppointment = upd.NextAppointment
	}
	if upd.AdditionalNotes != "" {
		base.AdditionalNotes = upd.AdditionalNotes
	}
	if upd.Medications != nil {
		base.Medications = cloneSlice(upd.Medications)
	}
	if upd.NextSteps != nil {
		base.NextSteps = cloneSlice(upd.NextSteps)
	}
	if upd.Recommendations != nil {
		base.Recommendations = cloneSlice(upd.Recommendations)
	}
	if upd.SelectedTreatments != nil {
		base.SelectedTreatments = cloneSlice(upd.SelectedTreatments)
	}
	if upd.SelectedMedicines != nil {
		base.SelectedMedicines = cloneSlice(upd.SelectedMedicines)
	}
	return base
}
