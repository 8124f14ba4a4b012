// Package reference holds the lookup entities: insurance providers,
// allergies, medications and diagnoses. Each kind lives in its own table and
// is a single case-insensitively unique name.
package reference

// Kind describes one lookup entity.
type Kind struct {
	Table     string
	Label     string
	Path      string
	MaxLength int
}

var (
	InsuranceProvider = Kind{Table: "insurance_provider", Label: "insurance provider", Path: "/insurance_providers", MaxLength: 50}
	Allergy           = Kind{Table: "allergy", Label: "allergy", Path: "/allergies", MaxLength: 30}
	Medication        = Kind{Table: "medication", Label: "medication", Path: "/medication", MaxLength: 30}
	Diagnosis         = Kind{Table: "diagnosis", Label: "diagnosis", Path: "/diagnoses", MaxLength: 30}
)

// Kinds lists every lookup entity in route registration order.
func Kinds() []Kind {
	return []Kind{InsuranceProvider, Allergy, Medication, Diagnosis}
}

// Item is the read model shared by every kind.
type Item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ItemWrite is the accepted request body. id is read-only and ignored.
type ItemWrite struct {
	Name *string `json:"name"`
}
