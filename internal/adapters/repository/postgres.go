package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/infrastructure/metrics"
)

// PostgresRepository implements ports.LicenseRepository using PostgreSQL.
// Per-key atomicity comes from ON CONFLICT upserts and the UNIQUE
// constraint on each table's key column; no application-level locking.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (r *PostgresRepository) GetIssued(ctx context.Context, key string) (*domain.IssuedKey, error) {
	defer observe("get_issued")()

	query := `SELECT id, key, hwid, created_at, last_seen FROM issued_keys WHERE key = $1`
	var rec domain.IssuedKey
	var lastSeen sql.NullTime
	errRow := r.db.QueryRowContext(ctx, query, key).Scan(&rec.ID, &rec.Key, &rec.HWID, &rec.CreatedAt, &lastSeen)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		rec.LastSeen = &t
	}
	return &rec, nil
}

func (r *PostgresRepository) UpsertIssuedOnVerify(ctx context.Context, key, hwid string, seen time.Time) error {
	defer observe("upsert_issued")()

	query := `INSERT INTO issued_keys (id, key, hwid, created_at, last_seen)
	          VALUES ($1, $2, $3, $4, $4)
	          ON CONFLICT (key) DO UPDATE SET hwid = EXCLUDED.hwid, last_seen = EXCLUDED.last_seen`
	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), key, hwid, seen)
	return err
}

func (r *PostgresRepository) CreateIssued(ctx context.Context, rec *domain.IssuedKey) error {
	defer observe("create_issued")()

	query := `INSERT INTO issued_keys (id, key, hwid, created_at, last_seen)
	          VALUES ($1, $2, $3, $4, NULL)
	          ON CONFLICT (key) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, rec.ID, rec.Key, rec.HWID, rec.CreatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) FindBan(ctx context.Context, key, hwid string) (*domain.Ban, error) {
	defer observe("find_ban")()

	// A ban matches by key or by hwid; the key match is preferred so the
	// client sees the ban's own reason rather than the generic hwid message.
	query := `SELECT id, key, hwid, reason, banned_at FROM banned_keys
	          WHERE key = $1 OR (hwid <> '' AND hwid = $2)
	          ORDER BY (key = $1) DESC LIMIT 1`
	var b domain.Ban
	errRow := r.db.QueryRowContext(ctx, query, key, hwid).Scan(&b.ID, &b.Key, &b.HWID, &b.Reason, &b.BannedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	return &b, nil
}

func (r *PostgresRepository) FindDeactivation(ctx context.Context, key string) (*domain.Deactivation, error) {
	defer observe("find_deactivation")()

	query := `SELECT id, key, reason, deactivated_at FROM deactivated_keys WHERE key = $1`
	var d domain.Deactivation
	errRow := r.db.QueryRowContext(ctx, query, key).Scan(&d.ID, &d.Key, &d.Reason, &d.DeactivatedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	return &d, nil
}

func (r *PostgresRepository) Ban(ctx context.Context, ban *domain.Ban) error {
	defer observe("ban")()

	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction: %v", errRollback)
		}
	}()

	// Copy the key's current hwid so the ban keeps blocking the machine
	// even if the key row is later deleted.
	hwid := ""
	errRow := tx.QueryRowContext(ctx, `SELECT hwid FROM issued_keys WHERE key = $1`, ban.Key).Scan(&hwid)
	if errRow != nil && !errors.Is(errRow, sql.ErrNoRows) {
		return errRow
	}

	// Ban supersedes deactivation; the sets stay mutually exclusive.
	if _, errExec := tx.ExecContext(ctx, `DELETE FROM deactivated_keys WHERE key = $1`, ban.Key); errExec != nil {
		return errExec
	}

	query := `INSERT INTO banned_keys (id, key, hwid, reason, banned_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (key) DO UPDATE SET hwid = EXCLUDED.hwid, reason = EXCLUDED.reason, banned_at = EXCLUDED.banned_at`
	if _, errExec := tx.ExecContext(ctx, query, ban.ID, ban.Key, hwid, ban.Reason, ban.BannedAt); errExec != nil {
		return errExec
	}

	return tx.Commit()
}

func (r *PostgresRepository) Unban(ctx context.Context, key string) error {
	defer observe("unban")()

	_, err := r.db.ExecContext(ctx, `DELETE FROM banned_keys WHERE key = $1`, key)
	return err
}

func (r *PostgresRepository) Deactivate(ctx context.Context, d *domain.Deactivation) error {
	defer observe("deactivate")()

	query := `INSERT INTO deactivated_keys (id, key, reason, deactivated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (key) DO UPDATE SET reason = EXCLUDED.reason, deactivated_at = EXCLUDED.deactivated_at`
	_, err := r.db.ExecContext(ctx, query, d.ID, d.Key, d.Reason, d.DeactivatedAt)
	return err
}

func (r *PostgresRepository) Reactivate(ctx context.Context, key string) error {
	defer observe("reactivate")()

	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction: %v", errRollback)
		}
	}()

	if _, errExec := tx.ExecContext(ctx, `DELETE FROM deactivated_keys WHERE key = $1`, key); errExec != nil {
		return errExec
	}
	if _, errExec := tx.ExecContext(ctx, `DELETE FROM banned_keys WHERE key = $1`, key); errExec != nil {
		return errExec
	}
	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	defer observe("delete")()

	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction: %v", errRollback)
		}
	}()

	if _, errExec := tx.ExecContext(ctx, `DELETE FROM issued_keys WHERE key = $1`, key); errExec != nil {
		return errExec
	}
	if _, errExec := tx.ExecContext(ctx, `DELETE FROM banned_keys WHERE key = $1`, key); errExec != nil {
		return errExec
	}
	if _, errExec := tx.ExecContext(ctx, `DELETE FROM deactivated_keys WHERE key = $1`, key); errExec != nil {
		return errExec
	}
	return tx.Commit()
}

func (r *PostgresRepository) ListAll(ctx context.Context) (*domain.Snapshot, error) {
	defer observe("list_all")()

	snap := &domain.Snapshot{}

	rows, errQuery := r.db.QueryContext(ctx, `SELECT id, key, hwid, created_at, last_seen FROM issued_keys ORDER BY created_at DESC`)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()
	for rows.Next() {
		var rec domain.IssuedKey
		var lastSeen sql.NullTime
		if errScan := rows.Scan(&rec.ID, &rec.Key, &rec.HWID, &rec.CreatedAt, &lastSeen); errScan != nil {
			return nil, errScan
		}
		if lastSeen.Valid {
			t := lastSeen.Time
			rec.LastSeen = &t
		}
		snap.Keys = append(snap.Keys, rec)
	}

	banRows, errQuery := r.db.QueryContext(ctx, `SELECT id, key, hwid, reason, banned_at FROM banned_keys ORDER BY banned_at DESC`)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := banRows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()
	for banRows.Next() {
		var b domain.Ban
		if errScan := banRows.Scan(&b.ID, &b.Key, &b.HWID, &b.Reason, &b.BannedAt); errScan != nil {
			return nil, errScan
		}
		snap.Banned = append(snap.Banned, b)
	}

	deactRows, errQuery := r.db.QueryContext(ctx, `SELECT id, key, reason, deactivated_at FROM deactivated_keys ORDER BY deactivated_at DESC`)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := deactRows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()
	for deactRows.Next() {
		var d domain.Deactivation
		if errScan := deactRows.Scan(&d.ID, &d.Key, &d.Reason, &d.DeactivatedAt); errScan != nil {
			return nil, errScan
		}
		snap.Deactivated = append(snap.Deactivated, d)
	}

	return snap, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
