package enums

import "fmt"

// BillingPeriod is the cadence at which a subscription renews.
type BillingPeriod string

const (
	BillingPeriodMonthly   BillingPeriod = "monthly"
	BillingPeriodQuarterly BillingPeriod = "quarterly"
	BillingPeriodYearly    BillingPeriod = "yearly"
)

var validBillingPeriods = []BillingPeriod{
	BillingPeriodMonthly,
	BillingPeriodQuarterly,
	BillingPeriodYearly,
}

// String implements fmt.Stringer.
func (p BillingPeriod) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p BillingPeriod) IsValid() bool {
	for _, candidate := range validBillingPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Months returns the calendar length of the period.
func (p BillingPeriod) Months() int {
	switch p {
	case BillingPeriodMonthly:
		return 1
	case BillingPeriodQuarterly:
		return 3
	case BillingPeriodYearly:
		return 12
	}
	return 0
}

// ParseBillingPeriod converts raw input into a BillingPeriod.
func ParseBillingPeriod(value string) (BillingPeriod, error) {
	for _, candidate := range validBillingPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing period %q", value)
}
