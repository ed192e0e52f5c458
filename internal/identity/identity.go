// Package identity resolves the machine and user identity used to
// fingerprint the device a protected application runs on.
package identity

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Sentinel values returned when a probe fails. Identity resolution must
// never abort the caller, so failures degrade to these fixed strings.
const (
	UnknownHWID = "UNKNOWN_HWID"
	UnknownPC   = "UNKNOWN_PC"
)

// Resolver derives a hardware identifier and machine name for the current
// host. The zero value is not usable; construct with NewResolver.
type Resolver struct {
	hostID      func() (string, error)
	currentUser func() (*user.User, error)
	hostname    func() (string, error)
	lookupCNAME func(string) (string, error)
}

// NewResolver creates a resolver backed by the operating system.
func NewResolver() *Resolver {
	return &Resolver{
		hostID:      host.HostID,
		currentUser: user.Current,
		hostname:    os.Hostname,
		lookupCNAME: net.LookupCNAME,
	}
}

// HardwareID returns an identifier tied to the machine and the current user
// principal. It is stable across process invocations but not across OS
// reinstalls or user-profile changes. Each call re-resolves; on any failure
// the sentinel UnknownHWID is returned.
func (r *Resolver) HardwareID() string {
	u, err := r.currentUser()
	if err != nil {
		return UnknownHWID
	}

	// On Windows u.Uid is already the user SID. Elsewhere the numeric uid
	// alone is too weak, so it is combined with the OS machine identifier.
	machineID, err := r.hostID()
	if err != nil || machineID == "" {
		return UnknownHWID
	}

	return fmt.Sprintf("%s-%s", machineID, u.Uid)
}

// MachineName returns the fully-qualified DNS hostname when resolvable,
// falling back to the plain hostname, then to the sentinel UnknownPC.
func (r *Resolver) MachineName() string {
	name, err := r.hostname()
	if err != nil || name == "" {
		return UnknownPC
	}

	if cname, err := r.lookupCNAME(name); err == nil {
		fqdn := strings.TrimSuffix(cname, ".")
		if fqdn != "" {
			return fqdn
		}
	}

	return name
}
