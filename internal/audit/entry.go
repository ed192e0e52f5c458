package audit

import "time"

// EventType classifies an audit log entry.
type EventType string

// Audit event types recorded by the session manager.
const (
	EventLogin            EventType = "LOGIN"
	EventLoginFailed      EventType = "LOGIN_FAILED"
	EventLicenseValidated EventType = "LICENSE_VALIDATED"
	EventLicenseInvalid   EventType = "LICENSE_INVALID"
	EventProductLoaded    EventType = "PRODUCT_LOADED"
	EventActionExecuted   EventType = "ACTION_EXECUTED"
	EventAppInitialized   EventType = "APP_INITIALIZED"
	EventAppClosed        EventType = "APP_CLOSED"
	EventSessionStart     EventType = "SESSION_START"
	EventSessionEnd       EventType = "SESSION_END"
	EventErrorOccurred    EventType = "ERROR_OCCURRED"
	EventDataAccessed     EventType = "DATA_ACCESSED"
	EventConfigChanged    EventType = "CONFIG_CHANGED"
	EventCustom           EventType = "CUSTOM"
)

// timestampLayout is the wall-clock format used in log records, with
// millisecond precision in local time.
const timestampLayout = "2006-01-02 15:04:05.000"

// Timestamp returns the current local time formatted for log records.
func Timestamp() string {
	return time.Now().Format(timestampLayout)
}

// Entry is a durable record of an authentication or session event.
// Once appended it is never mutated or removed except by ClearAll.
type Entry struct {
	Timestamp   string    `json:"timestamp"`
	Username    string    `json:"username"`
	LicenseKey  string    `json:"license_key"`
	HWID        string    `json:"hwid"`
	PCName      string    `json:"pc_name"`
	EventType   EventType `json:"event_type"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address"`
	AppVersion  string    `json:"app_version"`
	StatusCode  int       `json:"status_code"`
	UserAgent   string    `json:"user_agent"`
}

// UserAction is a durable record of an application-level action, kept in a
// stream independent from Entry.
type UserAction struct {
	Timestamp     string `json:"timestamp"`
	ActionName    string `json:"action_name"`
	ActionDetails string `json:"action_details"`
	Result        string `json:"result"`
	ModuleName    string `json:"module_name"`
}
