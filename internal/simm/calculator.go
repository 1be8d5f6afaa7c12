// Package simm implements the ISDA SIMM aggregation pipeline:
// regulation splitting, the delta, vega and curvature margins, add-on
// margins, the result rollup and winning regulation selection.
package simm

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/pkg/logger"
)

// Options configures one Calculator.
type Options struct {
	// CalculationCurrency drives currency-dependent parameters and the
	// FX self-currency exclusion.
	CalculationCurrency string
	// ResultCurrency is the reporting currency. Empty means the
	// calculation currency.
	ResultCurrency string
	// EnforceRegulations splits records along their collect and post
	// regulation lists instead of lumping everything under Unspecified.
	EnforceRegulations bool
	// Workers bounds the concurrent margin tasks. Zero or negative
	// means GOMAXPROCS.
	Workers int
	// RegulationPriority overrides DefaultRegulationPriority.
	RegulationPriority []string
}

// Calculator runs the full SIMM computation over one CRIF snapshot.
// ⭐ SSOT: 마진 계산 파이프라인 진입점은 Run 하나뿐
type Calculator struct {
	params contracts.ParameterProvider
	fx     contracts.FxProvider
	log    *logger.Logger
	opts   Options
}

// NewCalculator validates the options and builds a Calculator. The FX
// provider may be nil when the result currency is USD.
func NewCalculator(params contracts.ParameterProvider, fx contracts.FxProvider, log *logger.Logger, opts Options) (*Calculator, error) {
	if !validCurrency(opts.CalculationCurrency) {
		return nil, fmt.Errorf("invalid calculation currency %q", opts.CalculationCurrency)
	}
	if opts.ResultCurrency == "" {
		opts.ResultCurrency = opts.CalculationCurrency
	}
	if !validCurrency(opts.ResultCurrency) {
		return nil, fmt.Errorf("invalid result currency %q", opts.ResultCurrency)
	}
	if len(opts.RegulationPriority) == 0 {
		opts.RegulationPriority = DefaultRegulationPriority()
	}
	return &Calculator{params: params, fx: fx, log: log, opts: opts}, nil
}

func validCurrency(ccy string) bool {
	if len(ccy) != 3 {
		return false
	}
	for _, r := range ccy {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// FinalResult pairs a netting set's winning regulation with its result
// table.
type FinalResult struct {
	Regulation string
	Results    *Results
}

// Outcome carries everything one SIMM run produced.
type Outcome struct {
	// Results holds the margins per side, netting set and regulation.
	Results map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]*Results
	// WinningRegulations names the selected regulation per side and
	// netting set. Netting sets that produced no margins are absent.
	WinningRegulations map[contracts.SimmSide]map[contracts.NettingSetDetails]string
	// Final maps every input netting set to its published result: the
	// winner's margins, or an empty table for Schedule-only sets.
	Final map[contracts.SimmSide]map[contracts.NettingSetDetails]FinalResult
	// TradeIDs lists the contributing trades per cell, sorted.
	TradeIDs map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string][]string
	// FinalTradeIDs is the per-side union of the winning cells' trades.
	FinalTradeIDs map[contracts.SimmSide][]string
}

func newOutcome() *Outcome {
	o := &Outcome{
		Results:            make(map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]*Results),
		WinningRegulations: make(map[contracts.SimmSide]map[contracts.NettingSetDetails]string),
		Final:              make(map[contracts.SimmSide]map[contracts.NettingSetDetails]FinalResult),
		TradeIDs:           make(map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string][]string),
		FinalTradeIDs:      make(map[contracts.SimmSide][]string),
	}
	for _, side := range contracts.Sides() {
		o.Results[side] = make(map[contracts.NettingSetDetails]map[string]*Results)
		o.WinningRegulations[side] = make(map[contracts.NettingSetDetails]string)
		o.Final[side] = make(map[contracts.NettingSetDetails]FinalResult)
		o.TradeIDs[side] = make(map[contracts.NettingSetDetails]map[string][]string)
	}
	return o
}

// ResultsFor returns one cell's result table, nil when absent.
func (o *Outcome) ResultsFor(side contracts.SimmSide, ns contracts.NettingSetDetails, reg string) *Results {
	return o.Results[side][ns][reg]
}

// PortfolioIM returns one cell's portfolio-level total margin, 0 when
// the cell is absent.
func (o *Outcome) PortfolioIM(side contracts.SimmSide, ns contracts.NettingSetDetails, reg string) float64 {
	res := o.ResultsFor(side, ns, reg)
	if res == nil {
		return 0
	}
	return res.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll)
}

// FinalFor returns the published result of one side and netting set.
func (o *Outcome) FinalFor(side contracts.SimmSide, ns contracts.NettingSetDetails) (FinalResult, bool) {
	fr, ok := o.Final[side][ns]
	return fr, ok
}

// NettingSets returns the netting sets of the published results, sorted.
func (o *Outcome) NettingSets(side contracts.SimmSide) []contracts.NettingSetDetails {
	out := make([]contracts.NettingSetDetails, 0, len(o.Final[side]))
	for ns := range o.Final[side] {
		out = append(out, ns)
	}
	sortNettingSets(out)
	return out
}

// Run computes SIMM for every side, netting set and regulation in the
// records and publishes the winning regulations. Margins accumulate in
// USD and convert to the result currency at the end.
func (c *Calculator) Run(ctx context.Context, records []contracts.CrifRecord) (*Outcome, error) {
	start := time.Now()

	// 결과 통화 환율은 선제 조회: 조회 불가면 전체 실패
	fxRate := 1.0
	if c.opts.ResultCurrency != "USD" {
		if c.fx == nil {
			return nil, fmt.Errorf("fx provider required for result currency %s", c.opts.ResultCurrency)
		}
		rate, err := c.fx.Quote(ctx, c.opts.ResultCurrency)
		if err != nil {
			return nil, fmt.Errorf("USD/%s quote: %w", c.opts.ResultCurrency, err)
		}
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return nil, fmt.Errorf("USD/%s quote out of range: %v", c.opts.ResultCurrency, rate)
		}
		fxRate = rate
	}

	split, err := SplitRegulations(records, c.opts.EnforceRegulations, c.log)
	if err != nil {
		return nil, err
	}

	outcome := newOutcome()
	if split.Empty() {
		c.populateFinal(outcome, split)
		c.log.Warn("계산 대상 SIMM 레코드 없음, 빈 결과 반환")
		return outcome, nil
	}

	if err := c.runMarginTasks(ctx, outcome, split); err != nil {
		return nil, err
	}

	if c.opts.ResultCurrency != "USD" {
		for _, byNs := range outcome.Results {
			for _, byReg := range byNs {
				for _, res := range byReg {
					if err := res.Convert(c.opts.ResultCurrency, fxRate); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	c.determineWinners(outcome)
	c.populateFinal(outcome, split)
	c.collectTradeIDs(outcome, split)

	c.log.WithFields(map[string]interface{}{
		"records":      split.RecordCount(),
		"cells":        split.CellCount(),
		"netting_sets": len(split.InputNettingSets()),
		"result_ccy":   c.opts.ResultCurrency,
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("✅ SIMM 계산 완료")

	return outcome, nil
}

type marginTask struct {
	side contracts.SimmSide
	ns   contracts.NettingSetDetails
	reg  string
	set  *crif.Set
}

// runMarginTasks fans the (side, netting set, regulation) cells out to
// a bounded worker pool. Cells without sensitivities or fixed add-ons
// are skipped. The first error stops the run.
func (c *Calculator) runMarginTasks(ctx context.Context, outcome *Outcome, split *Split) error {
	var tasks []marginTask
	for _, side := range contracts.Sides() {
		for _, ns := range split.NettingSets(side) {
			for _, reg := range split.Regulations(side, ns) {
				set := split.RecordSet(side, ns, reg)
				if !set.HasCrifRecords() && !hasFixedAddOn(set) {
					continue
				}
				tasks = append(tasks, marginTask{side: side, ns: ns, reg: reg, set: set})
			}
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	queue := make(chan marginTask)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				mu.Lock()
				stop := firstErr != nil
				mu.Unlock()
				if stop || ctx.Err() != nil {
					continue
				}
				res, err := c.computeRegulation(t.set, t.side)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("margin task %s/%s/%s: %w", t.side, t.ns, t.reg, err)
					}
				} else {
					byReg := outcome.Results[t.side][t.ns]
					if byReg == nil {
						byReg = make(map[string]*Results)
						outcome.Results[t.side][t.ns] = byReg
					}
					byReg[t.reg] = res
				}
				mu.Unlock()
			}
		}()
	}

	for _, t := range tasks {
		queue <- t
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func hasFixedAddOn(set *crif.Set) bool {
	for _, rec := range set.SimmParameters() {
		if rec.RiskType == contracts.RiskTypeAddOnFixedAmount {
			return true
		}
	}
	return false
}

// computeRegulation produces one cell's full result table in USD.
func (c *Calculator) computeRegulation(set *crif.Set, side contracts.SimmSide) (*Results, error) {
	res := NewResults("USD", c.opts.CalculationCurrency)

	for _, pc := range set.ProductClasses() {
		if pc.IsAddOn() {
			continue
		}
		if err := c.productClassMargins(res, set, pc, side); err != nil {
			return nil, fmt.Errorf("product class %s: %w", pc, err)
		}
	}

	if err := rollUp(res, c.params); err != nil {
		return nil, err
	}
	if err := c.addOnMargins(res, set); err != nil {
		return nil, err
	}
	return res, nil
}

// productClassMargins runs every margin of one product class and
// stores the bucket-level entries.
func (c *Calculator) productClassMargins(res *Results, set *crif.Set, pc contracts.ProductClass, side contracts.SimmSide) error {
	store := func(rc contracts.RiskClass, mt contracts.MarginType, bm bucketMargins, ok bool) {
		if !ok {
			return
		}
		for bucket, margin := range bm {
			res.Add(pc, rc, mt, bucket, margin, true)
		}
	}

	// 델타
	bm, ok, err := c.irDeltaMargin(set, pc)
	if err != nil {
		return err
	}
	store(contracts.RiskClassInterestRate, contracts.MarginTypeDelta, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCreditQ)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditQualifying, contracts.MarginTypeDelta, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCreditNonQ)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditNonQualifying, contracts.MarginTypeDelta, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeEquity)
	if err != nil {
		return err
	}
	store(contracts.RiskClassEquity, contracts.MarginTypeDelta, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCommodity)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCommodity, contracts.MarginTypeDelta, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeFX)
	if err != nil {
		return err
	}
	store(contracts.RiskClassFX, contracts.MarginTypeDelta, bm, ok)

	// 베가
	bm, ok, err = c.irVegaMargin(set, pc)
	if err != nil {
		return err
	}
	store(contracts.RiskClassInterestRate, contracts.MarginTypeVega, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCreditVol)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditQualifying, contracts.MarginTypeVega, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCreditVolNonQ)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditNonQualifying, contracts.MarginTypeVega, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeEquityVol)
	if err != nil {
		return err
	}
	store(contracts.RiskClassEquity, contracts.MarginTypeVega, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeCommodityVol)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCommodity, contracts.MarginTypeVega, bm, ok)

	bm, ok, err = c.margin(set, pc, contracts.RiskTypeFXVol)
	if err != nil {
		return err
	}
	store(contracts.RiskClassFX, contracts.MarginTypeVega, bm, ok)

	// 곡률
	bm, ok, err = c.irCurvatureMargin(set, pc, side)
	if err != nil {
		return err
	}
	store(contracts.RiskClassInterestRate, contracts.MarginTypeCurvature, bm, ok)

	bm, ok, err = c.curvatureMargin(set, pc, contracts.RiskTypeCreditVol, side, true)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditQualifying, contracts.MarginTypeCurvature, bm, ok)

	bm, ok, err = c.curvatureMargin(set, pc, contracts.RiskTypeCreditVolNonQ, side, true)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCreditNonQualifying, contracts.MarginTypeCurvature, bm, ok)

	bm, ok, err = c.curvatureMargin(set, pc, contracts.RiskTypeEquityVol, side, false)
	if err != nil {
		return err
	}
	store(contracts.RiskClassEquity, contracts.MarginTypeCurvature, bm, ok)

	bm, ok, err = c.curvatureMargin(set, pc, contracts.RiskTypeCommodityVol, side, false)
	if err != nil {
		return err
	}
	store(contracts.RiskClassCommodity, contracts.MarginTypeCurvature, bm, ok)

	bm, ok, err = c.curvatureMargin(set, pc, contracts.RiskTypeFXVol, side, false)
	if err != nil {
		return err
	}
	store(contracts.RiskClassFX, contracts.MarginTypeCurvature, bm, ok)

	// 베이스 상관
	if c.params.IsValidRiskType(contracts.RiskTypeBaseCorr) {
		bm, ok, err = c.margin(set, pc, contracts.RiskTypeBaseCorr)
		if err != nil {
			return err
		}
		store(contracts.RiskClassCreditQualifying, contracts.MarginTypeBaseCorr, bm, ok)
	}

	return nil
}

// determineWinners selects the maximum-margin regulation per side and
// netting set.
func (c *Calculator) determineWinners(outcome *Outcome) {
	for _, side := range contracts.Sides() {
		for ns, byReg := range outcome.Results[side] {
			if len(byReg) == 0 {
				continue
			}
			margins := make(map[string]float64, len(byReg))
			for reg := range byReg {
				margins[reg] = outcome.PortfolioIM(side, ns, reg)
			}
			outcome.WinningRegulations[side][ns] = winningRegulation(margins, c.opts.RegulationPriority)
		}
	}
}

// populateFinal publishes one result per side and input netting set.
// Netting sets that produced nothing (Schedule-only, or records routed
// nowhere) get an empty table under Unspecified.
func (c *Calculator) populateFinal(outcome *Outcome, split *Split) {
	for _, side := range contracts.Sides() {
		for _, ns := range split.InputNettingSets() {
			if winner, ok := outcome.WinningRegulations[side][ns]; ok {
				outcome.Final[side][ns] = FinalResult{
					Regulation: winner,
					Results:    outcome.Results[side][ns][winner],
				}
				continue
			}
			outcome.Final[side][ns] = FinalResult{
				Regulation: contracts.RegulationUnspecified,
				Results:    NewResults(c.opts.ResultCurrency, c.opts.CalculationCurrency),
			}
		}
	}
}

// collectTradeIDs copies the split's trade IDs into the outcome and
// unions the winning cells' IDs per side.
func (c *Calculator) collectTradeIDs(outcome *Outcome, split *Split) {
	for _, side := range contracts.Sides() {
		for _, ns := range split.NettingSets(side) {
			for _, reg := range split.Regulations(side, ns) {
				ids := split.TradeIDs(side, ns, reg)
				if len(ids) == 0 {
					continue
				}
				byReg := outcome.TradeIDs[side][ns]
				if byReg == nil {
					byReg = make(map[string][]string)
					outcome.TradeIDs[side][ns] = byReg
				}
				byReg[reg] = ids
			}
		}
	}

	for _, side := range contracts.Sides() {
		union := make(map[string]bool)
		for ns, winner := range outcome.WinningRegulations[side] {
			for _, id := range outcome.TradeIDs[side][ns][winner] {
				union[id] = true
			}
		}
		ids := make([]string, 0, len(union))
		for id := range union {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		outcome.FinalTradeIDs[side] = ids
	}
}
