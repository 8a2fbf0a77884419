package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/meridian-works/meridian/internal/platform/db"
)

// Recorder is the write-side dependency the lifecycle manager consumes.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger appends entries to the audit_log table. Each entry's digest covers
// the previous entry's digest plus the entry payload, so truncation or
// in-place edits break the chain.
type Logger struct {
	pool *pgxpool.Pool
}

// NewLogger returns a Logger over the given pool.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool}
}

// Record persists the entry. The advisory lock serializes appends so the
// digest chain never forks under concurrent writers.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.pool == nil {
		return errors.New("audit: logger not initialised")
	}
	if entry.Action == "" {
		return errors.New("audit: action required")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	return db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('audit_log'))`); err != nil {
			return fmt.Errorf("audit: lock: %w", err)
		}

		var prev []byte
		err := tx.QueryRow(ctx, `SELECT digest FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("audit: last digest: %w", err)
		}

		digest, err := ChainDigest(prev, entry)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO audit_log (actor, action, tenant_id, program_id, project_id, user_id, role, effective_from, effective_to, at, digest)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			entry.Actor, entry.Action, entry.TenantID, entry.ProgramID, entry.ProjectID,
			entry.UserID, entry.Role, entry.EffectiveFrom, entry.EffectiveTo, entry.At, digest)
		if err != nil {
			return fmt.Errorf("audit: insert: %w", err)
		}
		return nil
	})
}

type chainPayload struct {
	Actor         string     `json:"actor"`
	Action        string     `json:"action"`
	TenantID      int64      `json:"tenant_id"`
	ProgramID     int64      `json:"program_id"`
	ProjectID     int64      `json:"project_id"`
	UserID        int64      `json:"user_id"`
	Role          string     `json:"role"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	At            time.Time  `json:"at"`
}

// ChainDigest computes the tamper-evidence digest for an entry following the
// given predecessor digest (nil for the first entry).
func ChainDigest(prev []byte, entry Entry) ([]byte, error) {
	payload, err := json.Marshal(chainPayload{
		Actor:         entry.Actor,
		Action:        entry.Action,
		TenantID:      entry.TenantID,
		ProgramID:     entry.ProgramID,
		ProjectID:     entry.ProjectID,
		UserID:        entry.UserID,
		Role:          entry.Role,
		EffectiveFrom: entry.EffectiveFrom,
		EffectiveTo:   entry.EffectiveTo,
		At:            entry.At,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: marshal payload: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("audit: digest: %w", err)
	}
	h.Write(prev)
	h.Write(payload)
	return h.Sum(nil), nil
}
