package filters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists filter sets and their version history.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a filter set repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "filters").Logger(),
	}
}

// Replace stores set as the investor's next version in one transaction and
// appends a snapshot to the history. The version continues from the highest
// version ever stored for the investor, so it never repeats after a delete.
func (r *Repository) Replace(ctx context.Context, set *domain.InvestorFilterSet) error {
	assessment, err := json.Marshal(nonNil(set.AssessmentRules))
	if err != nil {
		return fmt.Errorf("failed to encode assessment rules: %w", err)
	}
	risk, err := json.Marshal(nonNil(set.RiskRules))
	if err != nil {
		return fmt.Errorf("failed to encode risk rules: %w", err)
	}

	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version), 0) FROM filter_set_history WHERE investor_id = ?",
			set.InvestorID,
		).Scan(&current)
		if err != nil {
			return fmt.Errorf("failed to read current version: %w", err)
		}
		set.Version = current + 1

		var threshold interface{}
		if set.PassingThreshold != nil {
			threshold = *set.PassingThreshold
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO filter_sets (investor_id, version, passing_threshold, assessment_rules, risk_rules, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(investor_id) DO UPDATE SET
				version = excluded.version,
				passing_threshold = excluded.passing_threshold,
				assessment_rules = excluded.assessment_rules,
				risk_rules = excluded.risk_rules,
				updated_at = excluded.updated_at
		`, set.InvestorID, set.Version, threshold, string(assessment), string(risk), set.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to upsert filter set: %w", err)
		}

		snapshot, err := msgpack.Marshal(set)
		if err != nil {
			return fmt.Errorf("failed to encode filter set snapshot: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO filter_set_history (investor_id, version, snapshot, created_at)
			VALUES (?, ?, ?, ?)
		`, set.InvestorID, set.Version, snapshot, set.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to append filter set history: %w", err)
		}
		return nil
	})
}

// Get returns the investor's current filter set or domain.ErrFilterSetNotFound.
func (r *Repository) Get(ctx context.Context, investorID string) (*domain.InvestorFilterSet, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT investor_id, version, passing_threshold, assessment_rules, risk_rules, updated_at
		FROM filter_sets WHERE investor_id = ?
	`, investorID)
	set, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFilterSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filter set for %s: %w", investorID, err)
	}
	return set, nil
}

// List returns every current filter set ordered by investor id.
func (r *Repository) List(ctx context.Context) ([]*domain.InvestorFilterSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT investor_id, version, passing_threshold, assessment_rules, risk_rules, updated_at
		FROM filter_sets ORDER BY investor_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter sets: %w", err)
	}
	defer rows.Close()

	var sets []*domain.InvestorFilterSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filter set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// Delete removes the investor's current filter set. History is kept. Returns
// the version that was removed.
func (r *Repository) Delete(ctx context.Context, investorID string) (int64, error) {
	var version int64
	err := database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT version FROM filter_sets WHERE investor_id = ?", investorID).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrFilterSetNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read filter set: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM filter_sets WHERE investor_id = ?", investorID); err != nil {
			return fmt.Errorf("failed to delete filter set: %w", err)
		}
		return nil
	})
	return version, err
}

// History returns every stored version of the investor's filter set, newest first.
func (r *Repository) History(ctx context.Context, investorID string, limit int) ([]*domain.InvestorFilterSet, error) {
	query := "SELECT snapshot FROM filter_set_history WHERE investor_id = ? ORDER BY version DESC"
	args := []interface{}{investorID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter set history: %w", err)
	}
	defer rows.Close()

	var history []*domain.InvestorFilterSet
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var set domain.InvestorFilterSet
		if err := msgpack.Unmarshal(blob, &set); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		history = append(history, &set)
	}
	return history, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSet(s scanner) (*domain.InvestorFilterSet, error) {
	var set domain.InvestorFilterSet
	var threshold sql.NullFloat64
	var assessment, risk string
	var updatedAt int64

	if err := s.Scan(&set.InvestorID, &set.Version, &threshold, &assessment, &risk, &updatedAt); err != nil {
		return nil, err
	}
	if threshold.Valid {
		t := threshold.Float64
		set.PassingThreshold = &t
	}
	if err := json.Unmarshal([]byte(assessment), &set.AssessmentRules); err != nil {
		return nil, fmt.Errorf("failed to decode assessment rules: %w", err)
	}
	if err := json.Unmarshal([]byte(risk), &set.RiskRules); err != nil {
		return nil, fmt.Errorf("failed to decode risk rules: %w", err)
	}
	set.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &set, nil
}

func nonNil(rules []domain.FilterRule) []domain.FilterRule {
	if rules == nil {
		return []domain.FilterRule{}
	}
	return rules
}
