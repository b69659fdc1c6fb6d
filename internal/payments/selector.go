package payments

import (
	"fmt"
	"strings"

	"github.com/taskhive/taskhive-backend/pkg/config"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// ActiveProvider resolves the configured payment provider, falling back to
// Airwallex when none is set. The value is fixed for the process lifetime;
// switching providers requires a restart, so in-flight state created under the
// previous provider stays readable but new money movement only goes through
// the active one.
func ActiveProvider(cfg config.PaymentsConfig) (enums.PaymentProvider, error) {
	if strings.TrimSpace(cfg.Provider) == "" {
		return enums.ProviderAirwallex, nil
	}
	provider, err := enums.ParsePaymentProvider(cfg.Provider)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeConfig, err, fmt.Sprintf("unknown payment provider %q", cfg.Provider))
	}
	return provider, nil
}

// IsEnabled reports whether the requested provider is the active one.
func IsEnabled(active, requested enums.PaymentProvider) bool {
	return active == requested
}
