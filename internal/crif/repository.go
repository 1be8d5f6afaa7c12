package crif

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/atlas/internal/contracts"
)

// Repository handles CRIF record persistence
// ⭐ SSOT: CRIF 레코드 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new CRIF repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRecords stores the CRIF records of one run in a single batch.
func (r *Repository) SaveRecords(ctx context.Context, runID string, records []contracts.CrifRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO simm.crif_records (
			run_id, portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			trade_id, im_model, collect_regulations, post_regulations,
			product_class, risk_type, qualifier, bucket, label1, label2,
			amount_currency, amount, amount_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	for _, rec := range records {
		batch.Queue(query,
			runID, rec.NettingSet.ID, rec.NettingSet.AgreementType, rec.NettingSet.CallType,
			rec.NettingSet.InitialMarginType, rec.NettingSet.LegalEntityID,
			rec.TradeID, rec.IMModel, rec.CollectRegulations, rec.PostRegulations,
			rec.ProductClass.String(), string(rec.RiskType), rec.Qualifier, rec.Bucket,
			rec.Label1, rec.Label2, rec.AmountCurrency, rec.Amount, rec.AmountUSD,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save CRIF records: %w", err)
		}
	}

	return nil
}

// GetRecords retrieves the CRIF records stored for a run.
func (r *Repository) GetRecords(ctx context.Context, runID string) ([]contracts.CrifRecord, error) {
	query := `
		SELECT portfolio, agreement_type, call_type, initial_margin_type, legal_entity_id,
			   trade_id, im_model, collect_regulations, post_regulations,
			   product_class, risk_type, qualifier, bucket, label1, label2,
			   amount_currency, amount, amount_usd
		FROM simm.crif_records
		WHERE run_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get CRIF records: %w", err)
	}
	defer rows.Close()

	var records []contracts.CrifRecord
	for rows.Next() {
		var rec contracts.CrifRecord
		var productClass, riskType string

		err := rows.Scan(
			&rec.NettingSet.ID, &rec.NettingSet.AgreementType, &rec.NettingSet.CallType,
			&rec.NettingSet.InitialMarginType, &rec.NettingSet.LegalEntityID,
			&rec.TradeID, &rec.IMModel, &rec.CollectRegulations, &rec.PostRegulations,
			&productClass, &riskType, &rec.Qualifier, &rec.Bucket, &rec.Label1, &rec.Label2,
			&rec.AmountCurrency, &rec.Amount, &rec.AmountUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan CRIF record: %w", err)
		}

		if rec.ProductClass, err = contracts.ParseProductClass(productClass); err != nil {
			return nil, fmt.Errorf("stored CRIF record is invalid: %w", err)
		}
		if rec.RiskType, err = contracts.ParseRiskType(riskType); err != nil {
			return nil, fmt.Errorf("stored CRIF record is invalid: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CRIF records: %w", err)
	}

	return records, nil
}

// CountRecords returns the number of stored records for a run.
func (r *Repository) CountRecords(ctx context.Context, runID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM simm.crif_records WHERE run_id = $1`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count CRIF records: %w", err)
	}
	return count, nil
}

// DeleteRun removes the CRIF records of a run.
func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM simm.crif_records WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete CRIF records: %w", err)
	}
	return nil
}

// DBSource adapts stored run records to the CrifSource interface.
type DBSource struct {
	repo  *Repository
	runID string
}

// NewDBSource creates a CrifSource backed by a previously stored run.
func NewDBSource(repo *Repository, runID string) *DBSource {
	return &DBSource{repo: repo, runID: runID}
}

// Load reads the run's records from the database.
func (s *DBSource) Load(ctx context.Context) ([]contracts.CrifRecord, error) {
	return s.repo.GetRecords(ctx, s.runID)
}
