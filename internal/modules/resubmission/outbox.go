package resubmission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is one stored applicant notice with its replay cursor.
type Record struct {
	Seq int64 `json:"seq"`
	domain.ApplicantNotice
}

// Outbox stores applicant notices so late consumers can replay them.
type Outbox struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOutbox creates an outbox over the views database.
func NewOutbox(db *sql.DB, log zerolog.Logger) *Outbox {
	return &Outbox{
		db:  db,
		log: log.With().Str("repository", "resubmission_outbox").Logger(),
	}
}

// Append stores notice and returns its sequence number. Storing the same
// notice id twice is a no-op that returns 0.
func (o *Outbox) Append(ctx context.Context, notice domain.ApplicantNotice) (int64, error) {
	payload, err := msgpack.Marshal(notice)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notice: %w", err)
	}

	result, err := o.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO resubmission_outbox (id, deal_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, notice.ID, notice.DealID, payload, notice.Timestamp.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to append notice %s: %w", notice.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// Since returns up to limit notices with a sequence number above since, oldest first.
func (o *Outbox) Since(ctx context.Context, since int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := o.db.QueryContext(ctx, `
		SELECT seq, payload FROM resubmission_outbox
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.Seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		if err := msgpack.Unmarshal(payload, &rec.ApplicantNotice); err != nil {
			o.log.Warn().Err(err).Int64("seq", rec.Seq).Msg("Skipping undecodable notice")
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes notices created before cutoff and returns how many were removed.
func (o *Outbox) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := o.db.ExecContext(ctx, "DELETE FROM resubmission_outbox WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune outbox: %w", err)
	}
	return result.RowsAffected()
}
