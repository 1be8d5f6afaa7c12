package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/simm"
)

// Repository handles run metadata and margin result persistence
// ⭐ SSOT: 런/결과 저장·조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new result repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores the metadata row of a new run.
func (r *Repository) SaveRun(ctx context.Context, run contracts.RunSummary) error {
	query := `
		INSERT INTO simm.runs (
			run_id, as_of, params_version, params_hash,
			calculation_currency, result_currency, enforce_regulations,
			record_count, cell_count, netting_set_count,
			status, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		run.RunID, run.AsOf, run.ParamsVersion, run.ParamsHash,
		run.CalculationCurrency, run.ResultCurrency, run.EnforceRegulations,
		run.RecordCount, run.CellCount, run.NettingSetCount,
		string(run.Status), run.Error, run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// UpdateRun rewrites the mutable fields of a run after it finishes.
func (r *Repository) UpdateRun(ctx context.Context, run contracts.RunSummary) error {
	query := `
		UPDATE simm.runs
		SET params_version = $2, params_hash = $3,
			record_count = $4, cell_count = $5, netting_set_count = $6,
			status = $7, error = $8, duration_ms = $9
		WHERE run_id = $1`

	tag, err := r.pool.Exec(ctx, query,
		run.RunID, run.ParamsVersion, run.ParamsHash,
		run.RecordCount, run.CellCount, run.NettingSetCount,
		string(run.Status), run.Error, run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", run.RunID)
	}
	return nil
}

// GetRun retrieves the metadata of one run.
func (r *Repository) GetRun(ctx context.Context, runID string) (contracts.RunSummary, error) {
	query := `
		SELECT run_id, as_of, params_version, params_hash,
			   calculation_currency, result_currency, enforce_regulations,
			   record_count, cell_count, netting_set_count,
			   status, error, duration_ms, created_at
		FROM simm.runs
		WHERE run_id = $1`

	var run contracts.RunSummary
	var status string
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.AsOf, &run.ParamsVersion, &run.ParamsHash,
		&run.CalculationCurrency, &run.ResultCurrency, &run.EnforceRegulations,
		&run.RecordCount, &run.CellCount, &run.NettingSetCount,
		&status, &run.Error, &run.DurationMs, &run.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return contracts.RunSummary{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return contracts.RunSummary{}, fmt.Errorf("failed to get run: %w", err)
	}
	run.Status = contracts.RunStatus(status)
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]contracts.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, as_of, params_version, params_hash,
			   calculation_currency, result_currency, enforce_regulations,
			   record_count, cell_count, netting_set_count,
			   status, error, duration_ms, created_at
		FROM simm.runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []contracts.RunSummary
	for rows.Next() {
		var run contracts.RunSummary
		var status string
		err := rows.Scan(
			&run.RunID, &run.AsOf, &run.ParamsVersion, &run.ParamsHash,
			&run.CalculationCurrency, &run.ResultCurrency, &run.EnforceRegulations,
			&run.RecordCount, &run.CellCount, &run.NettingSetCount,
			&status, &run.Error, &run.DurationMs, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = contracts.RunStatus(status)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// SaveResults stores every computed margin row and the per-netting-set
// final rows of a run in a single batch.
func (r *Repository) SaveResults(ctx context.Context, runID string, outcome *simm.Outcome) error {
	batch := &pgx.Batch{}

	resultQuery := `
		INSERT INTO simm.results (
			run_id, side, portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			regulation, product_class, risk_class, margin_type, bucket,
			initial_margin, currency, calculation_currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	queued := 0
	for _, side := range contracts.Sides() {
		for _, ns := range sortedKeys(outcome.Results[side]) {
			byReg := outcome.Results[side][ns]
			for _, reg := range sortedRegs(byReg) {
				res := byReg[reg]
				for _, e := range res.Entries() {
					batch.Queue(resultQuery,
						runID, string(side), ns.ID, ns.AgreementType, ns.CallType,
						ns.InitialMarginType, ns.LegalEntityID,
						reg, e.Key.ProductClass.String(), string(e.Key.RiskClass),
						string(e.Key.MarginType), e.Key.Bucket,
						e.Margin, res.Currency(), res.CalculationCurrency(),
					)
					queued++
				}
			}
		}
	}

	finalQuery := `
		INSERT INTO simm.final_results (
			run_id, side, portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			regulation, initial_margin, currency, calculation_currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, side := range contracts.Sides() {
		for _, ns := range outcome.NettingSets(side) {
			fr, ok := outcome.FinalFor(side, ns)
			if !ok {
				continue
			}
			total := fr.Results.Get(
				contracts.ProductClassAll, contracts.RiskClassAll,
				contracts.MarginTypeAll, contracts.BucketAll)
			batch.Queue(finalQuery,
				runID, string(side), ns.ID, ns.AgreementType, ns.CallType,
				ns.InitialMarginType, ns.LegalEntityID,
				fr.Regulation, total, fr.Results.Currency(), fr.Results.CalculationCurrency(),
			)
			queued++
		}
	}

	if queued == 0 {
		return nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}
	return nil
}

// GetResults retrieves the stored margin rows of a run. Side and
// portfolio filters are optional; empty values match everything.
func (r *Repository) GetResults(ctx context.Context, runID string, side, portfolio string) ([]contracts.ResultRow, error) {
	query := `
		SELECT side, portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			   regulation, product_class, risk_class, margin_type, bucket,
			   initial_margin, currency, calculation_currency
		FROM simm.results
		WHERE run_id = $1`
	args := []interface{}{runID}

	if side != "" {
		args = append(args, side)
		query += fmt.Sprintf(" AND side = $%d", len(args))
	}
	if portfolio != "" {
		args = append(args, portfolio)
		query += fmt.Sprintf(" AND portfolio = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []contracts.ResultRow
	for rows.Next() {
		var row contracts.ResultRow
		var rowSide, productClass, riskClass, marginType string

		err := rows.Scan(
			&rowSide, &row.NettingSet.ID, &row.NettingSet.AgreementType, &row.NettingSet.CallType,
			&row.NettingSet.InitialMarginType, &row.NettingSet.LegalEntityID,
			&row.Regulation, &productClass, &riskClass, &marginType, &row.Bucket,
			&row.InitialMargin, &row.Currency, &row.CalculationCurrency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		if row.Side, err = contracts.ParseSide(rowSide); err != nil {
			return nil, fmt.Errorf("stored result row is invalid: %w", err)
		}
		if row.ProductClass, err = contracts.ParseProductClass(productClass); err != nil {
			return nil, fmt.Errorf("stored result row is invalid: %w", err)
		}
		if row.RiskClass, err = contracts.ParseRiskClass(riskClass); err != nil {
			return nil, fmt.Errorf("stored result row is invalid: %w", err)
		}
		if row.MarginType, err = contracts.ParseMarginType(marginType); err != nil {
			return nil, fmt.Errorf("stored result row is invalid: %w", err)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}

// GetFinalResults retrieves the published per-netting-set totals of a run.
func (r *Repository) GetFinalResults(ctx context.Context, runID string) ([]contracts.FinalRow, error) {
	query := `
		SELECT side, portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			   regulation, initial_margin, currency, calculation_currency
		FROM simm.final_results
		WHERE run_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get final results: %w", err)
	}
	defer rows.Close()

	var results []contracts.FinalRow
	for rows.Next() {
		var row contracts.FinalRow
		var rowSide string

		err := rows.Scan(
			&rowSide, &row.NettingSet.ID, &row.NettingSet.AgreementType, &row.NettingSet.CallType,
			&row.NettingSet.InitialMarginType, &row.NettingSet.LegalEntityID,
			&row.Regulation, &row.InitialMargin, &row.Currency, &row.CalculationCurrency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan final row: %w", err)
		}

		if row.Side, err = contracts.ParseSide(rowSide); err != nil {
			return nil, fmt.Errorf("stored final row is invalid: %w", err)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read final results: %w", err)
	}
	return results, nil
}

// DeleteRun removes a run's metadata and result rows.
func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	queries := []string{
		`DELETE FROM simm.results WHERE run_id = $1`,
		`DELETE FROM simm.final_results WHERE run_id = $1`,
		`DELETE FROM simm.runs WHERE run_id = $1`,
	}
	for _, q := range queries {
		if _, err := r.pool.Exec(ctx, q, runID); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
	}
	return nil
}

func sortedRegs(byReg map[string]*simm.Results) []string {
	regs := make([]string, 0, len(byReg))
	for reg := range byReg {
		regs = append(regs, reg)
	}
	sort.Strings(regs)
	return regs
}
