package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/infrastructure/metrics"
	"github.com/soremlabs/keyserve/internal/keysign"
)

// ReasonMissingInput is returned when either field is empty after
// normalization. The HTTP layer maps it to a 400 response.
const ReasonMissingInput = "missing key or hwid"

// Verification reasons returned to clients. Stable strings: installed
// clients display them verbatim.
const (
	reasonBadSignature  = "key invalid for this hardware id"
	reasonNotRegistered = "key not registered"
	reasonHWIDBanned    = "hardware id banned by administrator"
	reasonServerError   = "server error, try again"
)

type licenseService struct {
	repo         ports.LicenseRepository
	secret       []byte
	selfRegister bool
	logger       *slog.Logger
	now          func() time.Time
}

// NewLicenseService builds the verification engine. secret is the HMAC key
// shared with the key generator. When selfRegister is set, a correctly
// signed key that is missing from the issued set registers itself on first
// verification instead of being rejected.
func NewLicenseService(repo ports.LicenseRepository, secret []byte, selfRegister bool, logger *slog.Logger) ports.LicenseService {
	return &licenseService{
		repo:         repo,
		secret:       secret,
		selfRegister: selfRegister,
		logger:       logger,
		now:          time.Now,
	}
}

// Verify runs the fixed-order checks: input validation, signature, issued
// lookup, ban (key or hwid), deactivation, then records the sighting. Ban
// and deactivation messages must win over "not registered", and forged
// traffic must be rejected before any store access.
// Storage faults fail closed with a generic reason.
func (s *licenseService) Verify(ctx context.Context, rawKey, rawHWID string) domain.VerificationResult {
	key := keysign.Normalize(rawKey)
	hwid := strings.ToUpper(strings.TrimSpace(rawHWID))

	if key == "" || hwid == "" {
		return s.reject("missing_input", ReasonMissingInput)
	}

	if !keysign.Verify(key, hwid, s.secret) {
		return s.reject("bad_signature", reasonBadSignature)
	}

	rec, err := s.repo.GetIssued(ctx, key)
	if err != nil {
		return s.storeFault("get issued", key, err)
	}
	if rec == nil && !s.selfRegister {
		return s.reject("not_registered", reasonNotRegistered)
	}

	ban, err := s.repo.FindBan(ctx, key, hwid)
	if err != nil {
		return s.storeFault("find ban", key, err)
	}
	if ban != nil {
		if ban.Key == key {
			return s.reject("banned", fmt.Sprintf("license banned: %s", ban.Reason))
		}
		return s.reject("banned", reasonHWIDBanned)
	}

	deact, err := s.repo.FindDeactivation(ctx, key)
	if err != nil {
		return s.storeFault("find deactivation", key, err)
	}
	if deact != nil {
		return s.reject("deactivated", fmt.Sprintf("license deactivated: %s", deact.Reason))
	}

	if err := s.repo.UpsertIssuedOnVerify(ctx, key, hwid, s.now().UTC()); err != nil {
		return s.storeFault("upsert issued", key, err)
	}

	metrics.VerificationsTotal.WithLabelValues("valid").Inc()
	return domain.VerificationResult{Valid: true}
}

func (s *licenseService) HealthCheck(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *licenseService) reject(outcome, reason string) domain.VerificationResult {
	metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	return domain.VerificationResult{Valid: false, Reason: reason}
}

// storeFault logs the real error for operators and hands the client a
// generic message. A license check never fails open.
func (s *licenseService) storeFault(op, key string, err error) domain.VerificationResult {
	s.logger.Error("store fault during verification", "op", op, "key", key, "error", err)
	metrics.VerificationsTotal.WithLabelValues("error").Inc()
	return domain.VerificationResult{Valid: false, Reason: reasonServerError}
}
