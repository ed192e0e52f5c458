package authclient

import (
	"github.com/faerion/fsauth/internal/audit"
	"github.com/faerion/fsauth/internal/sysinfo"
)

// Endpoint paths on the licensing backend.
const (
	pathInit              = "/api/init"
	pathLicenseLogin      = "/api/license"
	pathSubscriptionLogin = "/api/subscription/login"
	pathValidate          = "/api/subscription/validate"
	pathSubscriptionInfo  = "/api/subscription/info"
	pathLogs              = "/api/logs"
	pathPCInfo            = "/api/pc-info"
)

// InitRequest announces the application to the backend.
type InitRequest struct {
	AppSecret string `json:"app_secret"`
	Version   string `json:"version"`
}

// InitResponse is the backend's answer to an init call.
type InitResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Version        string `json:"version"`
	AppName        string `json:"app_name"`
	UpdateRequired bool   `json:"update_required"`
}

// LicenseLoginRequest authenticates with a license key.
type LicenseLoginRequest struct {
	LicenseKey string `json:"license_key"`
	HWID       string `json:"hwid"`
	PCName     string `json:"pc_name"`
	Username   string `json:"username"`
	AppSecret  string `json:"app_secret"`
}

// SubscriptionLoginRequest authenticates with a subscription key.
type SubscriptionLoginRequest struct {
	SubscriptionKey string `json:"subscription_key"`
	HWID            string `json:"hwid"`
	PCName          string `json:"pc_name"`
	Username        string `json:"username"`
	AppSecret       string `json:"app_secret"`
}

// LoginResponse is shared by both login endpoints.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// ValidateRequest checks a subscription key without logging in.
type ValidateRequest struct {
	SubscriptionKey string `json:"subscription_key"`
	HWID            string `json:"hwid"`
	AppSecret       string `json:"app_secret"`
}

// ValidateResponse reports subscription validity.
type ValidateResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"`
}

// SubscriptionInfoRequest fetches subscription details.
type SubscriptionInfoRequest struct {
	SubscriptionKey string `json:"subscription_key"`
	AppSecret       string `json:"app_secret"`
}

// SubscriptionInfoResponse carries the fields the client consumes, plus the
// full server-side subscription record when the backend includes it.
type SubscriptionInfoResponse struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	Tier             string        `json:"tier"`
	MaxDevices       int           `json:"max_devices"`
	MaxApps          int           `json:"max_apps"`
	PrioritySupport  bool          `json:"priority_support"`
	AdvancedFeatures bool          `json:"advanced_features"`
	ExpiryDate       string        `json:"expiry_date"`
	Subscription     *Subscription `json:"subscription,omitempty"`
}

// Subscription mirrors the server's subscription record. The client never
// mutates it locally; it is a transient deserialization target per request.
type Subscription struct {
	ID               int    `json:"id"`
	UserID           int    `json:"user_id"`
	AppID            int    `json:"app_id"`
	Tier             string `json:"tier"`
	Status           string `json:"status"`
	SubscriptionKey  string `json:"subscription_key"`
	StartDate        string `json:"start_date"`
	ExpiryDate       string `json:"expiry_date"`
	AutoRenew        bool   `json:"auto_renew"`
	Price            int    `json:"price"`
	Currency         string `json:"currency"`
	BillingCycle     string `json:"billing_cycle"`
	MaxDevices       int    `json:"max_devices"`
	MaxApps          int    `json:"max_apps"`
	PrioritySupport  bool   `json:"priority_support"`
	AdvancedFeatures bool   `json:"advanced_features"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	LastRenewalDate  string `json:"last_renewal_date"`
	Notes            string `json:"notes"`
}

// logUploadRequest batches stored audit entries for the fire-and-forget
// log endpoint.
type logUploadRequest struct {
	Logs []audit.Entry `json:"logs"`
}

// pcInfoUploadRequest sends an inventory snapshot with a collection
// timestamp.
type pcInfoUploadRequest struct {
	sysinfo.Snapshot
	Timestamp string `json:"timestamp"`
}

// uploadResponse is the minimal acknowledgment shape of the fire-and-forget
// endpoints.
type uploadResponse struct {
	Success bool `json:"success"`
}
