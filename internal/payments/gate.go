package payments

import (
	"fmt"

	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
)

// RequireEnabled guards provider-specific operations. Calls routed at an
// inactive provider fail uniformly so clients can tell a routing mistake from
// a provider outage.
func RequireEnabled(active, requested enums.PaymentProvider) error {
	if !requested.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", requested))
	}
	if IsEnabled(active, requested) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeProviderInactive, fmt.Sprintf("%s is not the active payment provider", requested)).
		WithDetails(map[string]any{
			"current_provider":   string(active),
			"requested_provider": string(requested),
		})
}
