package contracts

import "time"

// RunStatus is the lifecycle state of one margin run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary is the persisted metadata of one margin run
// ⭐ SSOT: 런 메타데이터는 이 구조체로만 표현
type RunSummary struct {
	RunID               string    `json:"run_id"`
	AsOf                time.Time `json:"as_of"`
	ParamsVersion       string    `json:"params_version"`
	ParamsHash          string    `json:"params_hash"`
	CalculationCurrency string    `json:"calculation_currency"`
	ResultCurrency      string    `json:"result_currency"`
	EnforceRegulations  bool      `json:"enforce_regulations"`
	RecordCount         int       `json:"record_count"`
	CellCount           int       `json:"cell_count"`
	NettingSetCount     int       `json:"netting_set_count"`
	Status              RunStatus `json:"status"`
	Error               string    `json:"error,omitempty"`
	DurationMs          int64     `json:"duration_ms"`
	CreatedAt           time.Time `json:"created_at"`
}

// ResultRow is one stored margin number of a run
type ResultRow struct {
	Side                SimmSide          `json:"side"`
	NettingSet          NettingSetDetails `json:"netting_set"`
	Regulation          string            `json:"regulation"`
	ProductClass        ProductClass      `json:"product_class"`
	RiskClass           RiskClass         `json:"risk_class"`
	MarginType          MarginType        `json:"margin_type"`
	Bucket              string            `json:"bucket"`
	InitialMargin       float64           `json:"initial_margin"`
	Currency            string            `json:"currency"`
	CalculationCurrency string            `json:"calculation_currency"`
}

// FinalRow is the published margin of one side and netting set: the
// winning regulation and the portfolio-level total
type FinalRow struct {
	Side                SimmSide          `json:"side"`
	NettingSet          NettingSetDetails `json:"netting_set"`
	Regulation          string            `json:"regulation"`
	InitialMargin       float64           `json:"initial_margin"`
	Currency            string            `json:"currency"`
	CalculationCurrency string            `json:"calculation_currency"`
}
