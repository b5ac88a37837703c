// Package catalog holds the clinic's offerable treatments and medicines.
package catalog

// Treatment is a clinic service entry, e.g. a laser session or a peel.
type Treatment struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Cost        string `json:"cost"`
}

// Medicine is a stocked medication entry. TimeToTake and DurationDays are
// per-plan annotations; they are zero on the catalog row and filled in when
// the medicine is copied into a treatment plan.
type Medicine struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Usage        string `json:"usage"`
	Dosage       string `json:"dosage"`
	Stock        int    `json:"stock"`
	TimeToTake   string `json:"timeToTake,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
}
