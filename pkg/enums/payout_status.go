package enums

import "fmt"

// PayoutStatus tracks the helper payout lifecycle. "simulated" marks sandbox
// payouts so the UI never shows a permanently pending transfer in test mode.
type PayoutStatus string

const (
	PayoutStatusNone       PayoutStatus = "none"
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusSimulated  PayoutStatus = "simulated"
	PayoutStatusSucceeded  PayoutStatus = "succeeded"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusNone,
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusSimulated,
	PayoutStatusSucceeded,
	PayoutStatusFailed,
}

// IsValid reports whether the value matches the canonical payout status enum.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payout can no longer change state.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusSucceeded || s == PayoutStatusFailed
}

// ParsePayoutStatus converts the raw string to a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
