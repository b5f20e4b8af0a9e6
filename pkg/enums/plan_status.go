package enums

// PlanStatus marks whether a catalog plan can be subscribed to.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"
)

// String implements fmt.Stringer.
func (s PlanStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PlanStatus) IsValid() bool {
	return s == PlanStatusActive || s == PlanStatusArchived
}
