package ports

import (
	"context"
	"time"

	"github.com/soremlabs/keyserve/internal/core/domain"
)

// LicenseRepository is the authorization store: three durable record sets
// (issued, banned, deactivated) keyed by license key string. Lookups return
// (nil, nil) when no record matches. All mutations must be durable before
// returning and atomic per key; implementations must be safe for concurrent
// use.
type LicenseRepository interface {
	GetIssued(ctx context.Context, key string) (*domain.IssuedKey, error)
	// UpsertIssuedOnVerify inserts the key if absent, otherwise rewrites
	// hwid and last-seen. Concurrent calls for the same key must not lose
	// updates.
	UpsertIssuedOnVerify(ctx context.Context, key, hwid string, seen time.Time) error
	// CreateIssued registers a new key, failing with domain.ErrAlreadyExists
	// if it is already present.
	CreateIssued(ctx context.Context, rec *domain.IssuedKey) error
	// FindBan matches by key OR by hwid; hwid bans outlive key deletion.
	FindBan(ctx context.Context, key, hwid string) (*domain.Ban, error)
	FindDeactivation(ctx context.Context, key string) (*domain.Deactivation, error)
	// Ban copies the key's current hwid (empty if unknown), removes any
	// deactivation for the key, and upserts the ban record; a second ban of
	// the same key updates reason and timestamp rather than duplicating.
	Ban(ctx context.Context, ban *domain.Ban) error
	Unban(ctx context.Context, key string) error
	// Deactivate upserts; at most one deactivation exists per key.
	Deactivate(ctx context.Context, d *domain.Deactivation) error
	// Reactivate removes the key from both the deactivated and banned sets.
	Reactivate(ctx context.Context, key string) error
	// Delete purges the key from all three sets. Unknown keys are a no-op.
	Delete(ctx context.Context, key string) error
	ListAll(ctx context.Context) (*domain.Snapshot, error)
	Ping(ctx context.Context) error
}

// LicenseService answers the public verification question.
type LicenseService interface {
	Verify(ctx context.Context, rawKey, rawHWID string) domain.VerificationResult
	HealthCheck(ctx context.Context) error
}

// AdminService mutates the authorization store on behalf of operators.
// Every operation except Create is idempotent so admin tooling can retry
// on timeout without reading state first.
type AdminService interface {
	Create(ctx context.Context, key, hwid string) (*domain.IssuedKey, error)
	Ban(ctx context.Context, key, reason string) error
	Unban(ctx context.Context, key string) error
	Deactivate(ctx context.Context, key, reason string) error
	Reactivate(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
	ListAll(ctx context.Context) (*domain.Snapshot, error)
}
