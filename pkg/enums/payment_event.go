package enums

// PaymentEventCategory is the provider-agnostic event set the state machine
// understands. Each webhook adapter maps its network's native event names onto
// this set; anything outside it is acknowledged and ignored.
type PaymentEventCategory string

const (
	EventChargeSucceeded PaymentEventCategory = "charge.succeeded"
	EventChargeFailed    PaymentEventCategory = "charge.failed"
	EventPayoutSucceeded PaymentEventCategory = "payout.succeeded"
	EventPayoutFailed    PaymentEventCategory = "payout.failed"
)

// IsValid reports whether the category is part of the recognized set.
func (c PaymentEventCategory) IsValid() bool {
	switch c {
	case EventChargeSucceeded, EventChargeFailed, EventPayoutSucceeded, EventPayoutFailed:
		return true
	default:
		return false
	}
}
