package services

import (
	"context"
	"errors"
	"testing"

	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAdminCreate_NormalizesAndGeneratesID(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("CreateIssued", mock.MatchedBy(func(rec *domain.IssuedKey) bool {
		return rec.Key == "SRM-AB12-CD34-EF56-9A8B" && rec.HWID == "MACHINE1" && rec.ID != ""
	})).Return(nil)

	svc := NewAdminService(repo, testLogger())
	rec, err := svc.Create(context.Background(), "  srm-ab12-cd34-ef56-9a8b ", "machine1")

	require.NoError(t, err)
	require.Equal(t, "SRM-AB12-CD34-EF56-9A8B", rec.Key)
	require.False(t, rec.CreatedAt.IsZero())
	repo.AssertExpectations(t)
}

func TestAdminCreate_AlreadyExists(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("CreateIssued", mock.Anything).Return(domain.ErrAlreadyExists)

	svc := NewAdminService(repo, testLogger())
	_, err := svc.Create(context.Background(), "SRM-AB12-CD34-EF56-9A8B", "MACHINE1")

	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestAdminBan_DefaultReason(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("Ban", mock.MatchedBy(func(ban *domain.Ban) bool {
		return ban.Key == "SRM-AB12-CD34-EF56-9A8B" && ban.Reason == domain.DefaultReason && ban.ID != ""
	})).Return(nil)

	svc := NewAdminService(repo, testLogger())
	require.NoError(t, svc.Ban(context.Background(), "srm-ab12-cd34-ef56-9a8b", "   "))
	repo.AssertExpectations(t)
}

func TestAdminDeactivate_KeepsReason(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("Deactivate", mock.MatchedBy(func(d *domain.Deactivation) bool {
		return d.Key == "SRM-AB12-CD34-EF56-9A8B" && d.Reason == "subscription lapsed"
	})).Return(nil)

	svc := NewAdminService(repo, testLogger())
	require.NoError(t, svc.Deactivate(context.Background(), "SRM-AB12-CD34-EF56-9A8B", "subscription lapsed"))
	repo.AssertExpectations(t)
}

func TestAdminKeyOnlyOps_Normalize(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("Unban", "SRM-AB12-CD34-EF56-9A8B").Return(nil)
	repo.On("Reactivate", "SRM-AB12-CD34-EF56-9A8B").Return(nil)
	repo.On("Delete", "SRM-AB12-CD34-EF56-9A8B").Return(nil)

	svc := NewAdminService(repo, testLogger())
	ctx := context.Background()
	require.NoError(t, svc.Unban(ctx, " srm-ab12-cd34-ef56-9a8b "))
	require.NoError(t, svc.Reactivate(ctx, "srm-ab12-cd34-ef56-9a8b"))
	require.NoError(t, svc.Delete(ctx, "srm-ab12-cd34-ef56-9a8b"))
	repo.AssertExpectations(t)
}

func TestAdmin_PropagatesStoreErrors(t *testing.T) {
	repo := new(testutil.MockRepo)
	boom := errors.New("boom")
	repo.On("Ban", mock.Anything).Return(boom)

	svc := NewAdminService(repo, testLogger())
	require.ErrorIs(t, svc.Ban(context.Background(), "SRM-AB12-CD34-EF56-9A8B", "x"), boom)
}
