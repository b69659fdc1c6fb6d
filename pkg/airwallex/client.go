package airwallex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskhive/taskhive-backend/pkg/config"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
)

const (
	demoEnv       = "demo"
	productionEnv = "production"

	requestTimeout = 30 * time.Second

	// Bearer tokens stay valid for ~30 minutes; refresh ahead of expiry.
	tokenLifetime = 25 * time.Minute
)

var (
	errClientIDRequired      = errors.New("airwallex client id is required")
	errAPIKeyRequired        = errors.New("airwallex api key is required")
	errWebhookSecretRequired = errors.New("airwallex webhook secret is required")
	errInvalidEnv            = fmt.Errorf("airwallex environment must be %q or %q", demoEnv, productionEnv)
)

var baseURLs = map[string]string{
	demoEnv:       "https://api-demo.airwallex.com",
	productionEnv: "https://api.airwallex.com",
}

// Client talks to the Airwallex REST API with centralized auth, timeouts, and
// error mapping. Airwallex has no official Go SDK; this wrapper is the only
// place its wire protocol is visible.
type Client struct {
	httpClient    *http.Client
	clientID      string
	apiKey        string
	webhookSecret string
	environment   string
	baseURL       string
	logger        *logger.Logger

	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time
}

// NewClient validates credentials and prepares the HTTP wrapper.
func NewClient(ctx context.Context, cfg config.AirwallexConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		clientID:      clientID,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		environment:   env,
		baseURL:       baseURLs[env],
	}
	if logg != nil {
		c.logger = logg
		logg.Info(ctx, fmt.Sprintf("airwallex client initialized (%s)", env))
	}
	return c, nil
}

// Environment reports the normalized Airwallex environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// IsProduction reports whether the client targets the live network.
func (c *Client) IsProduction() bool {
	return c != nil && c.environment == productionEnv
}

// WebhookSecret returns the signing secret for webhook verification.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = demoEnv
	}
	switch env {
	case demoEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bearerToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.bearerToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/authentication/login", nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build airwallex login request")
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "airwallex login")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", pkgerrors.New(pkgerrors.CodeConfig, "airwallex credentials rejected")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("airwallex login failed: %s", resp.Status))
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode airwallex login response")
	}
	if body.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "airwallex login returned empty token")
	}

	c.bearerToken = body.Token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	return c.bearerToken, nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doJSON performs an authenticated JSON round trip and maps failures onto the
// shared error taxonomy. Provider payloads never escape this package raw.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode airwallex request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build airwallex request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "airwallex request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read airwallex response")
	}

	if resp.StatusCode >= 400 {
		var detail apiError
		_ = json.Unmarshal(raw, &detail)
		msg := fmt.Sprintf("airwallex %s %s: %s", method, path, resp.Status)
		wrapped := pkgerrors.New(pkgerrors.CodeDependency, msg)
		if detail.Code != "" {
			wrapped = wrapped.WithDetails(map[string]any{"provider_code": detail.Code})
		}
		if c.logger != nil {
			c.logger.Error(ctx, "airwallex call failed", fmt.Errorf("%s: %s", resp.Status, detail.Message))
		}
		return wrapped
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode airwallex response")
		}
	}
	return nil
}
