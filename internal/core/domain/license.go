// Package domain contains the core entities of the key service: issued
// licenses and the ban / deactivation sets that gate them.
package domain

import (
	"errors"
	"time"
)

// TimeLayout is the timestamp layout used on the wire (health endpoint,
// admin dumps). Kept from the previous deployment so existing tooling keeps
// parsing it.
const TimeLayout = "2006-01-02 15:04:05 UTC"

// DefaultReason is stored when an admin bans or deactivates without one.
const DefaultReason = "no reason given"

// ErrAlreadyExists is returned when creating a license key that is already
// registered.
var ErrAlreadyExists = errors.New("key already exists")

// IssuedKey is the persistent record of a registered license key. HWID is
// the machine the key was last seen on; it is rewritten on every successful
// verification rather than pinned, since the signature already binds the
// key to a machine.
type IssuedKey struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	HWID      string     `json:"hwid"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// Ban blocks a key, and through HWID every key on the same machine. HWID is
// copied from the issued record at ban time and may be empty for keys never
// seen. At most one Ban exists per key value.
type Ban struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	HWID     string    `json:"hwid"`
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"banned_at"`
}

// Deactivation blocks a key by exact value only, e.g. after a subscription
// lapse. A ban supersedes it: banning a key removes its deactivation.
type Deactivation struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	Reason        string    `json:"reason"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// VerificationResult is the verdict returned to clients. Reason is empty
// when Valid is true and human-readable otherwise; clients display it
// verbatim.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Snapshot is the full dump of all three record sets for the admin
// dashboard, each ordered newest first.
type Snapshot struct {
	Keys        []IssuedKey    `json:"keys"`
	Banned      []Ban          `json:"banned"`
	Deactivated []Deactivation `json:"deactivated"`
}
