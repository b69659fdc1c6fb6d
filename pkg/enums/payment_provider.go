package enums

import "fmt"

// PaymentProvider identifies which external payment network the platform is
// routing money through. Exactly one provider is active per process.
type PaymentProvider string

const (
	ProviderAirwallex PaymentProvider = "airwallex"
	ProviderStripe    PaymentProvider = "stripe"
	ProviderPayPal    PaymentProvider = "paypal"
)

var validPaymentProviders = []PaymentProvider{
	ProviderAirwallex,
	ProviderStripe,
	ProviderPayPal,
}

// IsValid reports whether the value matches a known payment provider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts the raw string to a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
