package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ conn queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{conn: pool}
}

const turnCols = `id, user_id, mode, model, confidence, risk_tier, triage_band,
	needs_review, hitl_rule, latency_ms, output, review_status, reviewed_by,
	review_note, reviewed_at, created_at`

func (r *repoPG) scan(row pgx.Row) (*Record, error) {
	var rec Record
	var output []byte
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Mode, &rec.Model, &rec.Confidence,
		&rec.RiskTier, &rec.TriageBand, &rec.NeedsReview, &rec.HITLRule, &rec.LatencyMS,
		&output, &rec.ReviewStatus, &rec.ReviewedBy, &rec.ReviewNote, &rec.ReviewedAt,
		&rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(output, &rec.Output); err != nil {
		return nil, fmt.Errorf("decode turn output %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	output, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("encode turn output: %w", err)
	}
	_, err = r.conn.Exec(ctx, `
		INSERT INTO turn_record (id, user_id, mode, model, confidence, risk_tier, triage_band,
			needs_review, hitl_rule, latency_ms, output, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.UserID, rec.Mode, rec.Model, rec.Confidence, rec.RiskTier, rec.TriageBand,
		rec.NeedsReview, rec.HITLRule, rec.LatencyMS, output, rec.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scan(r.conn.QueryRow(ctx, `SELECT `+turnCols+` FROM turn_record WHERE id = $1`, id))
}

func (r *repoPG) UpdateReview(ctx context.Context, rec *Record) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE turn_record SET review_status=$2, reviewed_by=$3, review_note=$4, reviewed_at=$5
		WHERE id = $1 AND needs_review AND review_status = ''`,
		rec.ID, rec.ReviewStatus, rec.ReviewedBy, rec.ReviewNote, rec.ReviewedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM turn_record WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

func (r *repoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM turn_record WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, `SELECT `+turnCols+` FROM turn_record WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(rows, total)
}

func (r *repoPG) ListPendingReview(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	const where = `WHERE needs_review AND review_status = ''`
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM turn_record `+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.Query(ctx, `SELECT `+turnCols+` FROM turn_record `+where+`
		ORDER BY created_at ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(rows, total)
}

func (r *repoPG) collect(rows pgx.Rows, total int) ([]*Record, int, error) {
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
