// Package authclient implements the client-side authentication session for
// applications protected by the Faerion licensing backend.
//
// The client owns the auth token and authenticated flag for the process
// lifetime, and records every auth-relevant operation in the durable local
// audit trail as a mandatory, synchronous side effect. Audit persistence is
// best-effort towards the embedding application: a failed append is logged
// and swallowed so that logging can never break the host app.
package authclient

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/faerion/fsauth/internal/audit"
	"github.com/faerion/fsauth/internal/sysinfo"
)

// Transport posts a JSON payload and decodes the JSON response.
type Transport interface {
	Post(ctx context.Context, path string, payload, result any) error
}

// Identity supplies the machine identity fields attached to requests and
// audit records.
type Identity interface {
	HardwareID() string
	MachineName() string
}

// Options configures a Client.
type Options struct {
	AppName   string
	AppSecret string
	// Version is the embedding application's version, reported to the
	// backend and stamped on audit records.
	Version   string
	Transport Transport
	Store     *audit.Store
	Identity  Identity
	Logger    zerolog.Logger
}

// Client is the auth session manager. It starts unauthenticated; a
// successful license or subscription login transitions it to authenticated,
// and Logout resets the session.
type Client struct {
	appName   string
	appSecret string
	version   string
	transport Transport
	store     *audit.Store
	ident     Identity
	logger    zerolog.Logger

	mu            sync.Mutex
	token         string
	authenticated bool
	sessionID     string
}

// New creates a session manager in the unauthenticated state.
func New(opts Options) *Client {
	version := opts.Version
	if version == "" {
		version = "1.0"
	}
	return &Client{
		appName:   opts.AppName,
		appSecret: opts.AppSecret,
		version:   version,
		transport: opts.Transport,
		store:     opts.Store,
		ident:     opts.Identity,
		logger:    opts.Logger.With().Str("component", "authclient").Logger(),
	}
}

// UserAgent returns the user-agent string stamped on audit records and
// suitable for the transport.
func (c *Client) UserAgent() string {
	return fmt.Sprintf("FSAuth/%s (%s)", c.version, runtime.GOOS)
}

// IsAuthenticated reports whether a login has succeeded this session.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Token returns the bearer token from the last successful login. It is held
// in memory only and never persisted.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Init announces the application to the backend. The APP_INITIALIZED audit
// event is emitted regardless of the server's answer, including transport
// failure. Auth state is not changed.
func (c *Client) Init(ctx context.Context, version string) (InitResponse, error) {
	var resp InitResponse
	err := c.transport.Post(ctx, pathInit, InitRequest{
		AppSecret: c.appSecret,
		Version:   version,
	}, &resp)

	c.LogEvent(audit.EventAppInitialized, "SYSTEM", "",
		"Application initialized with version "+version, version, 200)

	if err != nil {
		return InitResponse{}, fmt.Errorf("init: %w", err)
	}
	return resp, nil
}

// LoginWithLicense authenticates with a license key. On success the token is
// stored, the session becomes authenticated and LOGIN plus SESSION_START are
// recorded, in that order. On failure a single LOGIN_FAILED event is
// recorded and neither the state nor a previously stored token changes.
func (c *Client) LoginWithLicense(ctx context.Context, key, username string) (LoginResponse, error) {
	if username == "" {
		username = "unknown"
	}

	var resp LoginResponse
	err := c.transport.Post(ctx, pathLicenseLogin, LicenseLoginRequest{
		LicenseKey: key,
		HWID:       c.ident.HardwareID(),
		PCName:     c.ident.MachineName(),
		Username:   username,
		AppSecret:  c.appSecret,
	}, &resp)

	if err == nil && resp.Success {
		c.beginSession(resp.Token)
		c.LogEvent(audit.EventLogin, username, key,
			"User successfully authenticated with license key", c.version, 200)
		c.LogEvent(audit.EventSessionStart, username, key,
			"Session started", c.version, 200)
		return resp, nil
	}

	c.LogEvent(audit.EventLoginFailed, username, key,
		"Authentication failed", c.version, 401)

	if err != nil {
		return LoginResponse{}, fmt.Errorf("license login: %w", err)
	}
	return resp, nil
}

// LoginWithSubscription authenticates with a subscription key. Semantics
// match LoginWithLicense.
func (c *Client) LoginWithSubscription(ctx context.Context, key, username string) (LoginResponse, error) {
	if username == "" {
		username = "unknown"
	}

	var resp LoginResponse
	err := c.transport.Post(ctx, pathSubscriptionLogin, SubscriptionLoginRequest{
		SubscriptionKey: key,
		HWID:            c.ident.HardwareID(),
		PCName:          c.ident.MachineName(),
		Username:        username,
		AppSecret:       c.appSecret,
	}, &resp)

	if err == nil && resp.Success {
		c.beginSession(resp.Token)
		c.LogEvent(audit.EventLogin, username, key,
			"User successfully authenticated with subscription key", c.version, 200)
		c.LogEvent(audit.EventSessionStart, username, key,
			"Session started with subscription", c.version, 200)
		return resp, nil
	}

	c.LogEvent(audit.EventLoginFailed, username, key,
		"Subscription authentication failed", c.version, 401)

	if err != nil {
		return LoginResponse{}, fmt.Errorf("subscription login: %w", err)
	}
	return resp, nil
}

// Logout ends the session, clearing the token and the authenticated flag and
// recording SESSION_END. It is a no-op when not authenticated.
func (c *Client) Logout() {
	c.mu.Lock()
	wasAuthenticated := c.authenticated
	c.token = ""
	c.authenticated = false
	c.sessionID = ""
	c.mu.Unlock()

	if wasAuthenticated {
		c.LogEvent(audit.EventSessionEnd, "", "", "Session ended", c.version, 200)
	}
}

// ValidateSubscription checks a subscription key without altering auth
// state. LICENSE_VALIDATED or LICENSE_INVALID is recorded accordingly.
func (c *Client) ValidateSubscription(ctx context.Context, key string) (ValidateResponse, error) {
	var resp ValidateResponse
	err := c.transport.Post(ctx, pathValidate, ValidateRequest{
		SubscriptionKey: key,
		HWID:            c.ident.HardwareID(),
		AppSecret:       c.appSecret,
	}, &resp)

	if err == nil && resp.Success {
		c.LogEvent(audit.EventLicenseValidated, "", key,
			"Subscription key validated successfully", c.version, 200)
		return resp, nil
	}

	c.LogEvent(audit.EventLicenseInvalid, "", key,
		"Subscription key validation failed", c.version, 401)

	if err != nil {
		return ValidateResponse{}, fmt.Errorf("validate subscription: %w", err)
	}
	return resp, nil
}

// GetSubscription fetches subscription details. DATA_ACCESSED is recorded
// only on success.
func (c *Client) GetSubscription(ctx context.Context, key string) (SubscriptionInfoResponse, error) {
	var resp SubscriptionInfoResponse
	err := c.transport.Post(ctx, pathSubscriptionInfo, SubscriptionInfoRequest{
		SubscriptionKey: key,
		AppSecret:       c.appSecret,
	}, &resp)
	if err != nil {
		return SubscriptionInfoResponse{}, fmt.Errorf("get subscription: %w", err)
	}

	if resp.Success {
		c.LogEvent(audit.EventDataAccessed, "", key,
			"Subscription information retrieved", c.version, 200)
	}
	return resp, nil
}

// IsSubscriptionValid reports whether the key is accepted by the backend,
// the subscription is active, and it has not expired. An unparsable expiry
// date does not invalidate the subscription.
func (c *Client) IsSubscriptionValid(ctx context.Context, key string) bool {
	resp, err := c.ValidateSubscription(ctx, key)
	if err != nil || !resp.Success {
		return false
	}

	if resp.Status != "active" {
		return false
	}

	if exp, ok := parseExpiry(resp.ExpiryDate); ok && exp.Before(time.Now()) {
		return false
	}

	return true
}

// parseExpiry accepts the backend's RFC 3339 timestamps as well as bare
// dates.
func parseExpiry(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Each projection below re-fetches the full subscription and returns one
// field with a documented fallback. There is deliberately no caching between
// calls; callers needing several fields should use GetSubscription directly.

// SubscriptionTier returns the tier name, or "unknown".
func (c *Client) SubscriptionTier(ctx context.Context, key string) string {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil || !resp.Success || resp.Tier == "" {
		return "unknown"
	}
	return resp.Tier
}

// MaxDevices returns the device limit, or 1.
func (c *Client) MaxDevices(ctx context.Context, key string) int {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil || !resp.Success || resp.MaxDevices == 0 {
		return 1
	}
	return resp.MaxDevices
}

// MaxApps returns the application limit, or 1.
func (c *Client) MaxApps(ctx context.Context, key string) int {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil || !resp.Success || resp.MaxApps == 0 {
		return 1
	}
	return resp.MaxApps
}

// HasPrioritySupport returns the priority-support flag, or false.
func (c *Client) HasPrioritySupport(ctx context.Context, key string) bool {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil {
		return false
	}
	return resp.Success && resp.PrioritySupport
}

// HasAdvancedFeatures returns the advanced-features flag, or false.
func (c *Client) HasAdvancedFeatures(ctx context.Context, key string) bool {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil {
		return false
	}
	return resp.Success && resp.AdvancedFeatures
}

// ExpiryDate returns the expiry date string, or "unknown".
func (c *Client) ExpiryDate(ctx context.Context, key string) string {
	resp, err := c.GetSubscription(ctx, key)
	if err != nil || !resp.Success || resp.ExpiryDate == "" {
		return "unknown"
	}
	return resp.ExpiryDate
}

// SendLogs uploads all stored audit entries to the backend. The endpoint is
// fire-and-forget: the entries remain stored locally either way.
func (c *Client) SendLogs(ctx context.Context) error {
	entries := c.store.Entries()

	var resp uploadResponse
	if err := c.transport.Post(ctx, pathLogs, logUploadRequest{Logs: entries}, &resp); err != nil {
		return fmt.Errorf("send logs: %w", err)
	}

	c.logger.Debug().Int("entry_count", len(entries)).Msg("audit logs uploaded")
	return nil
}

// SendPCInfo uploads an inventory snapshot stamped with the collection time.
func (c *Client) SendPCInfo(ctx context.Context, snap sysinfo.Snapshot) error {
	payload := pcInfoUploadRequest{
		Snapshot:  snap,
		Timestamp: audit.Timestamp(),
	}

	var resp uploadResponse
	if err := c.transport.Post(ctx, pathPCInfo, payload, &resp); err != nil {
		return fmt.Errorf("send pc info: %w", err)
	}

	c.logger.Debug().Str("hostname", snap.Hostname).Msg("pc info uploaded")
	return nil
}

// LogEvent records one audit entry for the given event. Persistence errors
// are downgraded to a warning: logging must never break the embedding app.
func (c *Client) LogEvent(event audit.EventType, username, key, description, appVersion string, statusCode int) {
	if appVersion == "" {
		appVersion = c.version
	}

	entry := audit.Entry{
		Timestamp:   audit.Timestamp(),
		Username:    username,
		LicenseKey:  key,
		HWID:        c.ident.HardwareID(),
		PCName:      c.ident.MachineName(),
		EventType:   event,
		Description: description,
		IPAddress:   "127.0.0.1",
		AppVersion:  appVersion,
		StatusCode:  statusCode,
		UserAgent:   c.UserAgent(),
	}

	if err := c.store.AppendEntry(entry); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(event)).Msg("failed to persist audit entry")
	}
}

// LogUserAction records one application-level action in the independent
// action stream.
func (c *Client) LogUserAction(name, details, result, module string) {
	if module == "" {
		module = "UNKNOWN"
	}

	action := audit.UserAction{
		Timestamp:     audit.Timestamp(),
		ActionName:    name,
		ActionDetails: details,
		Result:        result,
		ModuleName:    module,
	}

	if err := c.store.AppendUserAction(action); err != nil {
		c.logger.Warn().Err(err).Str("action", name).Msg("failed to persist user action")
	}
}

// beginSession stores the token and marks the session authenticated.
func (c *Client) beginSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.authenticated = true
	c.sessionID = uuid.New().String()
}

// SessionID returns the identifier of the current session, empty when
// unauthenticated.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}
