package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/fx"
	"github.com/wonny/atlas/internal/report"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

const paramsFixture = "../../configs/simm_v2_6.yaml"

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

type stubSource struct {
	records []contracts.CrifRecord
	err     error
}

func (s *stubSource) Load(_ context.Context) ([]contracts.CrifRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func irDeltaRecord(ns, trade, ccy, tenor string, amountUSD float64) contracts.CrifRecord {
	return contracts.CrifRecord{
		NettingSet:     contracts.NewNettingSet(ns),
		TradeID:        trade,
		IMModel:        contracts.IMModelSIMM,
		ProductClass:   contracts.ProductClassRatesFX,
		RiskType:       contracts.RiskTypeIRCurve,
		Qualifier:      ccy,
		Label1:         tenor,
		Label2:         "Libor3m",
		AmountCurrency: "USD",
		Amount:         amountUSD,
		AmountUSD:      amountUSD,
	}
}

func testOrchestrator() *Orchestrator {
	log := testLogger()
	writer := report.NewWriter(0, log)
	provider := fx.NewStatic(map[string]float64{"EUR": 1.08})
	return NewOrchestrator(writer, provider, nil, nil, nil, log)
}

func baseConfig(source contracts.CrifSource) RunConfig {
	return RunConfig{
		Source:              source,
		ParamsFile:          paramsFixture,
		CalculationCurrency: "USD",
		ResultCurrency:      "USD",
		Workers:             1,
	}
}

func TestRunCompletesAllStages(t *testing.T) {
	source := &stubSource{records: []contracts.CrifRecord{
		irDeltaRecord("PORT_A", "T1", "USD", "5y", 1_000_000),
		irDeltaRecord("PORT_A", "T2", "USD", "10y", -400_000),
	}}

	cfg := baseConfig(source)
	cfg.OutputDir = t.TempDir()

	result, err := testOrchestrator().Run(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, []string{"S0:Crif", "S1:Params", "S2:Calculate", "S4:Report"}, result.CompletedStages)
	assert.Equal(t, contracts.RunStatusCompleted, result.Summary.Status)
	assert.Equal(t, 2, result.Summary.RecordCount)
	assert.Equal(t, 1, result.Summary.NettingSetCount)
	assert.Equal(t, "2.6", result.Summary.ParamsVersion)
	assert.NotEmpty(t, result.Summary.ParamsHash)
	assert.NotEmpty(t, result.RunID)
	assert.Positive(t, result.Duration)

	for _, pr := range result.Stages {
		assert.True(t, pr.Success, "stage %s", pr.Stage)
	}

	require.NotNil(t, result.Outcome)
	ns := contracts.NewNettingSet("PORT_A")
	im := result.Outcome.PortfolioIM(contracts.SideCall, ns, contracts.RegulationUnspecified)
	assert.Greater(t, im, 0.0)

	require.Len(t, result.ReportFiles, 3)
	for _, name := range []string{FinalReportFile, FullReportFile, DataReportFile} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunSkipsReportWithoutOutputDir(t *testing.T) {
	source := &stubSource{records: []contracts.CrifRecord{
		irDeltaRecord("PORT_A", "T1", "USD", "5y", 1_000_000),
	}}

	result, err := testOrchestrator().Run(context.Background(), baseConfig(source))
	require.NoError(t, err)

	assert.NotContains(t, result.CompletedStages, "S4:Report")
	assert.Empty(t, result.ReportFiles)
}

func TestRunSourceFailure(t *testing.T) {
	source := &stubSource{err: fmt.Errorf("boom")}

	result, err := testOrchestrator().Run(context.Background(), baseConfig(source))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S0 failed")

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, contracts.RunStatusFailed, result.Summary.Status)
	assert.NotEmpty(t, result.Summary.Error)

	last := result.Stages[len(result.Stages)-1]
	assert.Equal(t, contracts.StageCrif, last.Stage)
	assert.False(t, last.Success)
}

func TestRunMissingParamsFile(t *testing.T) {
	source := &stubSource{records: []contracts.CrifRecord{
		irDeltaRecord("PORT_A", "T1", "USD", "5y", 1_000_000),
	}}

	cfg := baseConfig(source)
	cfg.ParamsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := testOrchestrator().Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S1 failed")
}

func TestRunInvalidCurrencyFailsCalculateStage(t *testing.T) {
	source := &stubSource{records: []contracts.CrifRecord{
		irDeltaRecord("PORT_A", "T1", "USD", "5y", 1_000_000),
	}}

	cfg := baseConfig(source)
	cfg.CalculationCurrency = "usd"

	_, err := testOrchestrator().Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S2 failed")
}

func TestRunRequiresSource(t *testing.T) {
	cfg := baseConfig(nil)

	result, err := testOrchestrator().Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "crif source")
}

func TestRunDefaultsRunIDAndAsOf(t *testing.T) {
	source := &stubSource{records: []contracts.CrifRecord{
		irDeltaRecord("PORT_A", "T1", "USD", "5y", 1_000_000),
	}}

	result, err := testOrchestrator().Run(context.Background(), baseConfig(source))
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.AsOf.IsZero())
	assert.Equal(t, result.RunID, result.Summary.RunID)
}

func TestGenerateRunIDUnique(t *testing.T) {
	a := GenerateRunID()
	b := GenerateRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
