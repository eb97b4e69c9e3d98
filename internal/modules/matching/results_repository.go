package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
)

const evaluationColumns = `seq, id, deal_id, investor_id, deal_version, filter_set_version,
terminal_state, score, carried_forward, created_at`

// ResultsRepository appends evaluation results to the ledger database. Rows
// are only ever inserted.
type ResultsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewResultsRepository creates a results repository.
func NewResultsRepository(db *sql.DB, log zerolog.Logger) *ResultsRepository {
	return &ResultsRepository{
		db:  db,
		log: log.With().Str("repository", "evaluation_results").Logger(),
	}
}

// Append stores results with their stage records in a single transaction.
func (r *ResultsRepository) Append(ctx context.Context, results ...*domain.EvaluationResult) error {
	if len(results) == 0 {
		return nil
	}

	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		insertResult, err := tx.PrepareContext(ctx, `
			INSERT INTO evaluations (id, deal_id, investor_id, deal_version, filter_set_version,
				terminal_state, score, carried_forward, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare evaluation insert: %w", err)
		}
		defer insertResult.Close()

		insertStage, err := tx.PrepareContext(ctx, `
			INSERT INTO evaluation_stages (evaluation_id, stage, verdict, score, reasons, failing_dimensions)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare stage insert: %w", err)
		}
		defer insertStage.Close()

		for _, res := range results {
			carried := 0
			if res.CarriedForward {
				carried = 1
			}
			_, err := insertResult.ExecContext(ctx,
				res.ID, res.DealID, res.InvestorID, res.DealVersion, res.FilterSetVersion,
				string(res.Terminal), nullable(res.Score), carried, res.CreatedAt.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert evaluation %s: %w", res.ID, err)
			}

			for _, stage := range res.Stages {
				reasons, err := json.Marshal(nonNilStrings(stage.Reasons))
				if err != nil {
					return fmt.Errorf("failed to encode reasons: %w", err)
				}
				dims, err := json.Marshal(nonNilDims(stage.FailingDimensions))
				if err != nil {
					return fmt.Errorf("failed to encode failing dimensions: %w", err)
				}
				_, err = insertStage.ExecContext(ctx,
					res.ID, string(stage.Stage), string(stage.Verdict), nullable(stage.Score),
					string(reasons), string(dims),
				)
				if err != nil {
					return fmt.Errorf("failed to insert stage %s of %s: %w", stage.Stage, res.ID, err)
				}
			}
		}
		return nil
	})
}

// LatestAll returns the newest result of every (deal, investor) pair.
func (r *ResultsRepository) LatestAll(ctx context.Context) ([]*domain.EvaluationResult, error) {
	return r.query(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE seq IN (SELECT MAX(seq) FROM evaluations GROUP BY deal_id, investor_id)
		ORDER BY seq ASC
	`)
}

// LatestForDeal returns the newest result of each investor for one deal.
func (r *ResultsRepository) LatestForDeal(ctx context.Context, dealID string) ([]*domain.EvaluationResult, error) {
	return r.query(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE seq IN (SELECT MAX(seq) FROM evaluations WHERE deal_id = ? GROUP BY investor_id)
		ORDER BY investor_id ASC
	`, dealID)
}

// History returns a pair's results, newest first.
func (r *ResultsRepository) History(ctx context.Context, dealID, investorID string, limit int) ([]*domain.EvaluationResult, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE deal_id = ? AND investor_id = ? ORDER BY seq DESC`
	args := []interface{}{dealID, investorID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *ResultsRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.EvaluationResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}

	var results []*domain.EvaluationResult
	for rows.Next() {
		var res domain.EvaluationResult
		var seq, createdAt int64
		var terminal string
		var score sql.NullFloat64
		var carried int
		err := rows.Scan(&seq, &res.ID, &res.DealID, &res.InvestorID, &res.DealVersion, &res.FilterSetVersion,
			&terminal, &score, &carried, &createdAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		res.Terminal = domain.PairState(terminal)
		res.Score = fromNull(score)
		res.CarriedForward = carried == 1
		res.CreatedAt = time.Unix(0, createdAt).UTC()
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}
	rows.Close()

	for _, res := range results {
		if err := r.loadStages(ctx, res); err != nil {
			return nil, err
		}
	}
	return results, nil
}

var stageOrder = map[domain.Stage]int{
	domain.StageAssessment: 0,
	domain.StageRisk:       1,
	domain.StageVisibility: 2,
}

func (r *ResultsRepository) loadStages(ctx context.Context, res *domain.EvaluationResult) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT stage, verdict, score, reasons, failing_dimensions
		FROM evaluation_stages WHERE evaluation_id = ?
	`, res.ID)
	if err != nil {
		return fmt.Errorf("failed to query stages of %s: %w", res.ID, err)
	}
	defer rows.Close()

	var stages []domain.StageResult
	for rows.Next() {
		var st domain.StageResult
		var stage, verdict, reasons, dims string
		var score sql.NullFloat64
		if err := rows.Scan(&stage, &verdict, &score, &reasons, &dims); err != nil {
			return fmt.Errorf("failed to scan stage: %w", err)
		}
		st.Stage = domain.Stage(stage)
		st.Verdict = domain.Verdict(verdict)
		st.Score = fromNull(score)
		if err := json.Unmarshal([]byte(reasons), &st.Reasons); err != nil {
			return fmt.Errorf("failed to decode reasons: %w", err)
		}
		if err := json.Unmarshal([]byte(dims), &st.FailingDimensions); err != nil {
			return fmt.Errorf("failed to decode failing dimensions: %w", err)
		}
		if len(st.FailingDimensions) == 0 {
			st.FailingDimensions = nil
		}

		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sort.Slice(stages, func(i, j int) bool {
		return stageOrder[stages[i].Stage] < stageOrder[stages[j].Stage]
	})
	res.Stages = stages
	return nil
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

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilDims(d []domain.Dimension) []domain.Dimension {
	if d == nil {
		return []domain.Dimension{}
	}
	return d
}
