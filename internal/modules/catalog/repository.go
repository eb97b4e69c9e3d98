package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
)

// dealColumns is the column list for the deals table, in scan order.
const dealColumns = `id, applicant_id, industry, region, funding_amount, investment_period_months,
revenue_share_ratio, monthly_revenue, annual_revenue, gross_margin, net_margin,
status, version, revision, submitted_at, updated_at`

// Repository handles deal persistence in the catalog database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a catalog repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "catalog").Logger(),
	}
}

// Insert stores a new deal and stamps it with the next catalog revision.
func (r *Repository) Insert(ctx context.Context, deal *domain.Deal) error {
	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals WHERE id = ?", deal.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check deal existence: %w", err)
		}
		if exists > 0 {
			return domain.ErrDuplicateDeal
		}

		rev, err := nextRevision(ctx, tx)
		if err != nil {
			return err
		}
		deal.Revision = rev

		_, err = tx.ExecContext(ctx, `
			INSERT INTO deals (`+dealColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			deal.ID, deal.ApplicantID, deal.Industry, deal.Region,
			nullable(deal.FundingAmount), nullable(deal.InvestmentPeriodMonths),
			nullable(deal.RevenueShareRatio), nullable(deal.MonthlyRevenue),
			nullable(deal.AnnualRevenue), nullable(deal.GrossMargin), nullable(deal.NetMargin),
			string(deal.Status), deal.Version, deal.Revision,
			deal.SubmittedAt.UnixNano(), deal.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert deal: %w", err)
		}
		return nil
	})
}

// Save writes the mutable fields of an existing deal under a new catalog
// revision. A non-nil change is appended to the status history in the same
// transaction.
func (r *Repository) Save(ctx context.Context, deal *domain.Deal, change *StatusChange) error {
	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		rev, err := nextRevision(ctx, tx)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE deals SET
				industry = ?, region = ?, funding_amount = ?, investment_period_months = ?,
				revenue_share_ratio = ?, monthly_revenue = ?, annual_revenue = ?,
				gross_margin = ?, net_margin = ?, status = ?, version = ?, revision = ?,
				updated_at = ?
			WHERE id = ?
		`,
			deal.Industry, deal.Region,
			nullable(deal.FundingAmount), nullable(deal.InvestmentPeriodMonths),
			nullable(deal.RevenueShareRatio), nullable(deal.MonthlyRevenue),
			nullable(deal.AnnualRevenue), nullable(deal.GrossMargin), nullable(deal.NetMargin),
			string(deal.Status), deal.Version, rev, deal.UpdatedAt.UnixNano(),
			deal.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update deal: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return domain.ErrDealNotFound
		}

		if change != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO deal_status_history (deal_id, from_status, to_status, reason, source, changed_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, deal.ID, string(change.From), string(change.To), change.Reason, change.Source, change.ChangedAt.UnixNano())
			if err != nil {
				return fmt.Errorf("failed to append status history: %w", err)
			}
		}

		deal.Revision = rev
		return nil
	})
}

// Get returns one deal or domain.ErrDealNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Deal, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+dealColumns+" FROM deals WHERE id = ?", id)
	deal, err := scanDeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal %s: %w", id, err)
	}
	return deal, nil
}

// All returns every deal ordered by submission time.
func (r *Repository) All(ctx context.Context) ([]domain.Deal, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+dealColumns+" FROM deals ORDER BY submitted_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	return scanDeals(rows)
}

// List returns one page of deals matching filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Deal, int, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Industry != "" {
		where = append(where, "industry = ? COLLATE NOCASE")
		args = append(args, filter.Industry)
	}
	if filter.Region != "" {
		where = append(where, "region = ? COLLATE NOCASE")
		args = append(args, filter.Region)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deals: %w", err)
	}

	query := "SELECT " + dealColumns + " FROM deals" + clause + " ORDER BY submitted_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals, err := scanDeals(rows)
	if err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}

// Revision returns the catalog-wide write counter.
func (r *Repository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, "SELECT revision FROM catalog_revision WHERE id = 1").Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to read catalog revision: %w", err)
	}
	return rev, nil
}

// History returns a deal's status changes, oldest first.
func (r *Repository) History(ctx context.Context, dealID string) ([]StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deal_id, from_status, to_status, reason, source, changed_at
		FROM deal_status_history
		WHERE deal_id = ?
		ORDER BY id ASC
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var changes []StatusChange
	for rows.Next() {
		var c StatusChange
		var from, to string
		var changedAt int64
		if err := rows.Scan(&c.ID, &c.DealID, &from, &to, &c.Reason, &c.Source, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		c.From = domain.DealStatus(from)
		c.To = domain.DealStatus(to)
		c.ChangedAt = time.Unix(0, changedAt).UTC()
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func nextRevision(ctx context.Context, tx *sql.Tx) (int64, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE catalog_revision SET revision = revision + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to bump catalog revision: %w", err)
	}
	var rev int64
	if err := tx.QueryRowContext(ctx, "SELECT revision FROM catalog_revision WHERE id = 1").Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to read catalog revision: %w", err)
	}
	return rev, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(s scanner) (*domain.Deal, error) {
	var d domain.Deal
	var status string
	var funding, period, share, monthly, annual, gross, net sql.NullFloat64
	var submittedAt, updatedAt int64

	err := s.Scan(
		&d.ID, &d.ApplicantID, &d.Industry, &d.Region,
		&funding, &period, &share, &monthly, &annual, &gross, &net,
		&status, &d.Version, &d.Revision, &submittedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.FundingAmount = fromNull(funding)
	d.InvestmentPeriodMonths = fromNull(period)
	d.RevenueShareRatio = fromNull(share)
	d.MonthlyRevenue = fromNull(monthly)
	d.AnnualRevenue = fromNull(annual)
	d.GrossMargin = fromNull(gross)
	d.NetMargin = fromNull(net)
	d.Status = domain.DealStatus(status)
	d.SubmittedAt = time.Unix(0, submittedAt).UTC()
	d.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &d, nil
}

func scanDeals(rows *sql.Rows) ([]domain.Deal, error) {
	var deals []domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, *deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}
	return deals, nil
}

func nullable(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
