package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soremlabs/keyserve/internal/core/domain"
)

func newFileRepo(t *testing.T) (*FileRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys_data.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("failed to create file repo: %v", err)
	}
	return repo, path
}

func issuedRec(key, hwid string) *domain.IssuedKey {
	return &domain.IssuedKey{ID: uuid.New().String(), Key: key, HWID: hwid, CreatedAt: time.Now().UTC()}
}

func banRec(key, reason string) *domain.Ban {
	return &domain.Ban{ID: uuid.New().String(), Key: key, Reason: reason, BannedAt: time.Now().UTC()}
}

func TestFileRepo_CreateAndGet(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatalf("CreateIssued failed: %v", err)
	}

	rec, err := repo.GetIssued(ctx, "SRM-A")
	if err != nil {
		t.Fatalf("GetIssued failed: %v", err)
	}
	if rec == nil || rec.HWID != "HW1" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.LastSeen != nil {
		t.Errorf("New key should have no last seen")
	}

	missing, err := repo.GetIssued(ctx, "SRM-B")
	if err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for missing key, got (%+v, %v)", missing, err)
	}
}

func TestFileRepo_CreateDuplicate(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatalf("CreateIssued failed: %v", err)
	}
	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW2")); err != domain.ErrAlreadyExists {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestFileRepo_UpsertOnVerify(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	seen := time.Now().UTC()

	// Insert when absent.
	if err := repo.UpsertIssuedOnVerify(ctx, "SRM-A", "HW1", seen); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	rec, _ := repo.GetIssued(ctx, "SRM-A")
	if rec == nil || rec.LastSeen == nil {
		t.Fatalf("Expected record with last seen, got %+v", rec)
	}

	// Update hwid and last seen when present.
	later := seen.Add(time.Minute)
	if err := repo.UpsertIssuedOnVerify(ctx, "SRM-A", "HW2", later); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	rec, _ = repo.GetIssued(ctx, "SRM-A")
	if rec.HWID != "HW2" || !rec.LastSeen.Equal(later) {
		t.Errorf("Upsert did not rewrite hwid/last seen: %+v", rec)
	}
}

func TestFileRepo_BanIdempotent(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.Ban(ctx, banRec("SRM-A", "first")); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if err := repo.Ban(ctx, banRec("SRM-A", "second")); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	snap, _ := repo.ListAll(ctx)
	if len(snap.Banned) != 1 {
		t.Fatalf("Expected one ban record, got %d", len(snap.Banned))
	}
	if snap.Banned[0].Reason != "second" {
		t.Errorf("Second ban should update the reason, got %q", snap.Banned[0].Reason)
	}
}

func TestFileRepo_BanCopiesHWIDAndClearsDeactivation(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Deactivate(ctx, &domain.Deactivation{ID: uuid.New().String(), Key: "SRM-A", Reason: "lapsed", DeactivatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Ban(ctx, banRec("SRM-A", "abuse")); err != nil {
		t.Fatal(err)
	}

	d, err := repo.FindDeactivation(ctx, "SRM-A")
	if err != nil || d != nil {
		t.Errorf("Ban should clear the deactivation, found %+v", d)
	}
	b, _ := repo.FindBan(ctx, "SRM-A", "")
	if b == nil || b.HWID != "HW1" {
		t.Errorf("Ban should copy the issued hwid, got %+v", b)
	}
}

func TestFileRepo_FindBanByHWID(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Ban(ctx, banRec("SRM-A", "abuse")); err != nil {
		t.Fatal(err)
	}

	// A different key presented from the banned machine still matches.
	b, err := repo.FindBan(ctx, "SRM-B", "HW1")
	if err != nil || b == nil {
		t.Fatalf("Expected hwid ban match, got (%+v, %v)", b, err)
	}

	// An empty ban hwid must not match anything.
	if err := repo.Ban(ctx, banRec("SRM-NEVER-SEEN", "ghost")); err != nil {
		t.Fatal(err)
	}
	b, _ = repo.FindBan(ctx, "SRM-C", "")
	if b != nil {
		t.Errorf("Empty hwid should not match, got %+v", b)
	}
}

func TestFileRepo_ReactivateClearsBoth(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.Ban(ctx, banRec("SRM-A", "abuse")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Deactivate(ctx, &domain.Deactivation{ID: uuid.New().String(), Key: "SRM-B", Reason: "lapsed", DeactivatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if err := repo.Reactivate(ctx, "SRM-A"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Reactivate(ctx, "SRM-B"); err != nil {
		t.Fatal(err)
	}

	snap, _ := repo.ListAll(ctx)
	if len(snap.Banned) != 0 || len(snap.Deactivated) != 0 {
		t.Errorf("Reactivate should clear ban and deactivation: %+v", snap)
	}
}

func TestFileRepo_DeletePurgesAllSets(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Ban(ctx, banRec("SRM-A", "abuse")); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, "SRM-A"); err != nil {
		t.Fatal(err)
	}

	snap, _ := repo.ListAll(ctx)
	if len(snap.Keys) != 0 || len(snap.Banned) != 0 || len(snap.Deactivated) != 0 {
		t.Errorf("Delete should purge all sets: %+v", snap)
	}

	// Deleting an unknown key is a no-op success.
	if err := repo.Delete(ctx, "SRM-NEVER-CREATED"); err != nil {
		t.Errorf("Delete of unknown key should succeed, got %v", err)
	}
}

func TestFileRepo_ListAllNewestFirst(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	old := &domain.IssuedKey{ID: uuid.New().String(), Key: "SRM-OLD", CreatedAt: time.Now().Add(-time.Hour)}
	recent := &domain.IssuedKey{ID: uuid.New().String(), Key: "SRM-NEW", CreatedAt: time.Now()}
	if err := repo.CreateIssued(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateIssued(ctx, recent); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Keys) != 2 || snap.Keys[0].Key != "SRM-NEW" {
		t.Errorf("Expected newest first, got %+v", snap.Keys)
	}
}

func TestFileRepo_PersistsAcrossReopen(t *testing.T) {
	repo, path := newFileRepo(t)
	ctx := context.Background()

	if err := repo.CreateIssued(ctx, issuedRec("SRM-A", "HW1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Ban(ctx, banRec("SRM-A", "abuse")); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	rec, _ := reopened.GetIssued(ctx, "SRM-A")
	if rec == nil {
		t.Errorf("Issued key lost across reopen")
	}
	b, _ := reopened.FindBan(ctx, "SRM-A", "")
	if b == nil || b.Reason != "abuse" {
		t.Errorf("Ban lost across reopen: %+v", b)
	}
}

func TestFileRepo_ConcurrentUpserts(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.UpsertIssuedOnVerify(ctx, "SRM-A", "HW1", time.Now()); err != nil {
				t.Errorf("Upsert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := repo.ListAll(ctx)
	if len(snap.Keys) != 1 {
		t.Errorf("Concurrent upserts of one key must yield one record, got %d", len(snap.Keys))
	}
}

func TestFileRepo_Ping(t *testing.T) {
	repo, _ := newFileRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
