package enums

import "fmt"

// OnboardingStatus describes how far a helper has progressed toward holding the
// payout credential the active provider requires.
type OnboardingStatus string

const (
	OnboardingNotStarted OnboardingStatus = "not_started"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingComplete   OnboardingStatus = "complete"
)

var validOnboardingStatuses = []OnboardingStatus{
	OnboardingNotStarted,
	OnboardingInProgress,
	OnboardingComplete,
}

// IsValid reports whether the value matches the canonical onboarding status enum.
func (s OnboardingStatus) IsValid() bool {
	for _, candidate := range validOnboardingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOnboardingStatus converts the raw string to an OnboardingStatus.
func ParseOnboardingStatus(value string) (OnboardingStatus, error) {
	for _, candidate := range validOnboardingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid onboarding status %q", value)
}
