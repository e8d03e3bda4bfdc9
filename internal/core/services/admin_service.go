package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/infrastructure/metrics"
	"github.com/soremlabs/keyserve/internal/keysign"
)

type adminService struct {
	repo   ports.LicenseRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAdminService builds the administration engine over the given store.
func NewAdminService(repo ports.LicenseRepository, logger *slog.Logger) ports.AdminService {
	return &adminService{repo: repo, logger: logger, now: time.Now}
}

func (s *adminService) Create(ctx context.Context, key, hwid string) (*domain.IssuedKey, error) {
	rec := &domain.IssuedKey{
		ID:        uuid.New().String(),
		Key:       keysign.Normalize(key),
		HWID:      strings.ToUpper(strings.TrimSpace(hwid)),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateIssued(ctx, rec); err != nil {
		return nil, err
	}
	s.audit("create", rec.Key)
	return rec, nil
}

func (s *adminService) Ban(ctx context.Context, key, reason string) error {
	ban := &domain.Ban{
		ID:       uuid.New().String(),
		Key:      keysign.Normalize(key),
		Reason:   normalizeReason(reason),
		BannedAt: s.now().UTC(),
	}
	if err := s.repo.Ban(ctx, ban); err != nil {
		return err
	}
	s.audit("ban", ban.Key)
	return nil
}

func (s *adminService) Unban(ctx context.Context, key string) error {
	if err := s.repo.Unban(ctx, keysign.Normalize(key)); err != nil {
		return err
	}
	s.audit("unban", keysign.Normalize(key))
	return nil
}

func (s *adminService) Deactivate(ctx context.Context, key, reason string) error {
	d := &domain.Deactivation{
		ID:            uuid.New().String(),
		Key:           keysign.Normalize(key),
		Reason:        normalizeReason(reason),
		DeactivatedAt: s.now().UTC(),
	}
	if err := s.repo.Deactivate(ctx, d); err != nil {
		return err
	}
	s.audit("deactivate", d.Key)
	return nil
}

func (s *adminService) Reactivate(ctx context.Context, key string) error {
	if err := s.repo.Reactivate(ctx, keysign.Normalize(key)); err != nil {
		return err
	}
	s.audit("reactivate", keysign.Normalize(key))
	return nil
}

func (s *adminService) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, keysign.Normalize(key)); err != nil {
		return err
	}
	s.audit("delete", keysign.Normalize(key))
	return nil
}

func (s *adminService) ListAll(ctx context.Context) (*domain.Snapshot, error) {
	return s.repo.ListAll(ctx)
}

func (s *adminService) audit(action, key string) {
	s.logger.Info("admin action", "action", action, "key", key)
	metrics.AdminActionsTotal.WithLabelValues(action).Inc()
}

func normalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.DefaultReason
	}
	return reason
}
