package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soremlabs/keyserve/internal/core/domain"
)

// FileRepository implements ports.LicenseRepository on a single JSON
// document. A process-wide mutex serializes every operation and each
// mutation is written to a temp file and renamed into place, so a crash
// mid-write leaves the previous state intact. Suited for single-node
// deployments without a database.
type FileRepository struct {
	mu   sync.Mutex
	path string
	data fileData
}

type fileData struct {
	Keys        []domain.IssuedKey    `json:"keys"`
	Banned      []domain.Ban          `json:"banned"`
	Deactivated []domain.Deactivation `json:"deactivated"`
}

// NewFileRepository loads (or initializes) the JSON store at path.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(raw, &r.data); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	return r, nil
}

// save must be called with the mutex held.
func (r *FileRepository) save() error {
	raw, err := json.MarshalIndent(&r.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".keyserve-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func (r *FileRepository) GetIssued(ctx context.Context, key string) (*domain.IssuedKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data.Keys {
		if r.data.Keys[i].Key == key {
			rec := r.data.Keys[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *FileRepository) UpsertIssuedOnVerify(ctx context.Context, key, hwid string, seen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data.Keys {
		if r.data.Keys[i].Key == key {
			r.data.Keys[i].HWID = hwid
			t := seen
			r.data.Keys[i].LastSeen = &t
			return r.save()
		}
	}
	t := seen
	r.data.Keys = append(r.data.Keys, domain.IssuedKey{
		ID:        uuid.New().String(),
		Key:       key,
		HWID:      hwid,
		CreatedAt: seen,
		LastSeen:  &t,
	})
	return r.save()
}

func (r *FileRepository) CreateIssued(ctx context.Context, rec *domain.IssuedKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data.Keys {
		if r.data.Keys[i].Key == rec.Key {
			return domain.ErrAlreadyExists
		}
	}
	r.data.Keys = append(r.data.Keys, *rec)
	return r.save()
}

func (r *FileRepository) FindBan(ctx context.Context, key, hwid string) (*domain.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Key matches win over hwid matches so the caller reports the ban's
	// own reason.
	for i := range r.data.Banned {
		if r.data.Banned[i].Key == key {
			b := r.data.Banned[i]
			return &b, nil
		}
	}
	for i := range r.data.Banned {
		if r.data.Banned[i].HWID != "" && r.data.Banned[i].HWID == hwid {
			b := r.data.Banned[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (r *FileRepository) FindDeactivation(ctx context.Context, key string) (*domain.Deactivation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data.Deactivated {
		if r.data.Deactivated[i].Key == key {
			d := r.data.Deactivated[i]
			return &d, nil
		}
	}
	return nil, nil
}

func (r *FileRepository) Ban(ctx context.Context, ban *domain.Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hwid := ""
	for i := range r.data.Keys {
		if r.data.Keys[i].Key == ban.Key {
			hwid = r.data.Keys[i].HWID
			break
		}
	}

	r.data.Deactivated = removeDeactivation(r.data.Deactivated, ban.Key)

	for i := range r.data.Banned {
		if r.data.Banned[i].Key == ban.Key {
			r.data.Banned[i].HWID = hwid
			r.data.Banned[i].Reason = ban.Reason
			r.data.Banned[i].BannedAt = ban.BannedAt
			return r.save()
		}
	}
	b := *ban
	b.HWID = hwid
	r.data.Banned = append(r.data.Banned, b)
	return r.save()
}

func (r *FileRepository) Unban(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Banned = removeBan(r.data.Banned, key)
	return r.save()
}

func (r *FileRepository) Deactivate(ctx context.Context, d *domain.Deactivation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data.Deactivated {
		if r.data.Deactivated[i].Key == d.Key {
			r.data.Deactivated[i].Reason = d.Reason
			r.data.Deactivated[i].DeactivatedAt = d.DeactivatedAt
			return r.save()
		}
	}
	r.data.Deactivated = append(r.data.Deactivated, *d)
	return r.save()
}

func (r *FileRepository) Reactivate(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Deactivated = removeDeactivation(r.data.Deactivated, key)
	r.data.Banned = removeBan(r.data.Banned, key)
	return r.save()
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.data.Keys[:0:0]
	for _, k := range r.data.Keys {
		if k.Key != key {
			keys = append(keys, k)
		}
	}
	r.data.Keys = keys
	r.data.Banned = removeBan(r.data.Banned, key)
	r.data.Deactivated = removeDeactivation(r.data.Deactivated, key)
	return r.save()
}

func (r *FileRepository) ListAll(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &domain.Snapshot{
		Keys:        append([]domain.IssuedKey(nil), r.data.Keys...),
		Banned:      append([]domain.Ban(nil), r.data.Banned...),
		Deactivated: append([]domain.Deactivation(nil), r.data.Deactivated...),
	}
	sort.Slice(snap.Keys, func(i, j int) bool { return snap.Keys[i].CreatedAt.After(snap.Keys[j].CreatedAt) })
	sort.Slice(snap.Banned, func(i, j int) bool { return snap.Banned[i].BannedAt.After(snap.Banned[j].BannedAt) })
	sort.Slice(snap.Deactivated, func(i, j int) bool {
		return snap.Deactivated[i].DeactivatedAt.After(snap.Deactivated[j].DeactivatedAt)
	})
	return snap, nil
}

func (r *FileRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The store is healthy if its directory is still writable.
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".keyserve-ping-*")
	if err != nil {
		return err
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

func removeBan(bans []domain.Ban, key string) []domain.Ban {
	out := bans[:0:0]
	for _, b := range bans {
		if b.Key != key {
			out = append(out, b)
		}
	}
	return out
}

func removeDeactivation(ds []domain.Deactivation, key string) []domain.Deactivation {
	out := ds[:0:0]
	for _, d := range ds {
		if d.Key != key {
			out = append(out, d)
		}
	}
	return out
}
