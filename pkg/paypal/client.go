package paypal

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
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	requestTimeout = 30 * time.Second
)

var (
	errClientIDRequired  = errors.New("paypal client id is required")
	errSecretRequired    = errors.New("paypal secret is required")
	errWebhookIDRequired = errors.New("paypal webhook id is required")
	errInvalidEnv        = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client talks to the PayPal REST API. There is no maintained official Go SDK,
// so this wrapper owns OAuth, timeouts, and error mapping for the whole
// service.
type Client struct {
	httpClient  *http.Client
	clientID    string
	secret      string
	webhookID   string
	environment string
	baseURL     string
	logger      *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient validates credentials and prepares the HTTP wrapper.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	webhookID := strings.TrimSpace(cfg.WebhookID)
	if webhookID == "" {
		return nil, errWebhookIDRequired
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		clientID:    clientID,
		secret:      secret,
		webhookID:   webhookID,
		environment: env,
		baseURL:     baseURLs[env],
	}
	if logg != nil {
		c.logger = logg
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}
	return c, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// IsSandbox reports whether the client targets the sandbox network.
func (c *Client) IsSandbox() bool {
	return c != nil && c.environment == sandboxEnv
}

// WebhookID returns the configured webhook registration id.
func (c *Client) WebhookID() string {
	if c == nil {
		return ""
	}
	return c.webhookID
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal token request")
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal token")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", pkgerrors.New(pkgerrors.CodeConfig, "paypal credentials rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paypal token request failed: %s", resp.Status))
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal token response")
	}
	if body.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token response empty")
	}

	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime > time.Minute {
		lifetime -= time.Minute
	}
	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(lifetime)
	return c.accessToken, nil
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal response")
	}

	if resp.StatusCode >= 400 {
		var detail apiError
		_ = json.Unmarshal(raw, &detail)
		msg := fmt.Sprintf("paypal %s %s: %s", method, path, resp.Status)
		wrapped := pkgerrors.New(pkgerrors.CodeDependency, msg)
		if detail.Name != "" {
			wrapped = wrapped.WithDetails(map[string]any{"provider_code": detail.Name})
		}
		if c.logger != nil {
			c.logger.Error(ctx, "paypal call failed", fmt.Errorf("%s: %s", resp.Status, detail.Message))
		}
		return wrapped
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
		}
	}
	return nil
}
