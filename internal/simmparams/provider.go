package simmparams

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/atlas/internal/contracts"
)

// 99% quantile of the standard normal, used to rescale delta risk
// weights into implied volatilities for the vega margins
const quantile99 = 2.3263478740408408

// fallback group for currencies not listed in currency_groups
const regularGroup = "regular"

// Provider answers risk weight, correlation, threshold and scaling
// lookups for one loaded parameter version.
// ⭐ SSOT: 마진 계산에 쓰이는 모든 파라미터 조회는 Provider를 통해서만
type Provider struct {
	params  *Parameters
	hash    string
	version float64

	ccyGroup    map[string]string
	tenorIdx    map[string]int
	fxHigh      map[string]bool
	eqBucketIdx map[string]int
	coBucketIdx map[string]int
	rcIdx       map[contracts.RiskClass]int

	irDeltaTh ccyThresholds
	irVegaTh  ccyThresholds
	fxDeltaTh ccyThresholds
	fxVegaTh  ccyThresholds
}

// NewProvider builds the lookup tables for a validated parameter set
func NewProvider(p *Parameters) (*Provider, error) {
	hash, err := Hash(p)
	if err != nil {
		return nil, fmt.Errorf("failed to hash parameters: %w", err)
	}

	version, err := strconv.ParseFloat(p.Version, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version %q: %w", p.Version, err)
	}

	pr := &Provider{
		params:      p,
		hash:        hash,
		version:     version,
		ccyGroup:    make(map[string]string),
		tenorIdx:    make(map[string]int),
		fxHigh:      make(map[string]bool),
		eqBucketIdx: make(map[string]int),
		coBucketIdx: make(map[string]int),
		rcIdx:       make(map[contracts.RiskClass]int),
		irDeltaTh:   newCcyThresholds(p.InterestRate.Concentration.Delta),
		irVegaTh:    newCcyThresholds(p.InterestRate.Concentration.Vega),
		fxDeltaTh:   newCcyThresholds(p.FX.Concentration.Delta),
		fxVegaTh:    newCcyThresholds(p.FX.Concentration.Vega),
	}

	for group, ccys := range p.InterestRate.CurrencyGroups {
		for _, ccy := range ccys {
			pr.ccyGroup[ccy] = group
		}
	}
	for i, tenor := range p.InterestRate.Tenors {
		pr.tenorIdx[strings.ToLower(tenor)] = i
	}
	for _, ccy := range p.FX.HighVolatilityCurrencies {
		pr.fxHigh[ccy] = true
	}
	for i, b := range p.Equity.Buckets {
		pr.eqBucketIdx[b] = i
	}
	for i, b := range p.Commodity.Buckets {
		pr.coBucketIdx[b] = i
	}
	for i, c := range p.RiskClassCorrelations.Classes {
		rc, err := contracts.ParseRiskClass(c)
		if err != nil {
			return nil, fmt.Errorf("failed to index risk classes: %w", err)
		}
		pr.rcIdx[rc] = i
	}

	return pr, nil
}

// Version returns the model version string, e.g. "2.6"
func (p *Provider) Version() string { return p.params.Version }

// VersionNumber returns the version as a comparable number
func (p *Provider) VersionNumber() float64 { return p.version }

// Hash returns the SHA256 of the loaded parameter set
func (p *Provider) Hash() string { return p.hash }

// Parameters exposes the raw parameter document
func (p *Provider) Parameters() *Parameters { return p.params }

// Weight returns the risk weight for one risk factor
func (p *Provider) Weight(f contracts.RiskFactor, calcCcy string) (float64, error) {
	switch f.RiskType {
	case contracts.RiskTypeIRCurve:
		group, ok := p.ccyGroup[f.Qualifier]
		if !ok {
			group = regularGroup
		}
		weights := p.params.InterestRate.RiskWeights[group]
		idx, ok := p.tenorIdx[strings.ToLower(f.Label1)]
		if !ok {
			return 0, fmt.Errorf("unknown tenor %q for %s", f.Label1, f.RiskType)
		}
		return weights[idx], nil

	case contracts.RiskTypeXCcyBasis:
		return p.params.InterestRate.CrossCurrencyBasis.RiskWeight, nil

	case contracts.RiskTypeInflation:
		return p.params.InterestRate.Inflation.RiskWeight, nil

	case contracts.RiskTypeIRVol, contracts.RiskTypeInflationVol:
		// IR HVR은 여기서 선반영 (금리 베가 마진은 HVR을 다시 곱하지 않음)
		return p.params.InterestRate.VegaRiskWeight * p.params.InterestRate.HVR, nil

	case contracts.RiskTypeFX:
		return p.fxDeltaWeight(f.Qualifier), nil

	case contracts.RiskTypeFXVol:
		return p.params.FX.VegaRiskWeight, nil

	case contracts.RiskTypeCreditQ:
		return p.creditWeight(p.params.CreditQualifying, f)

	case contracts.RiskTypeCreditVol:
		return p.params.CreditQualifying.VegaRiskWeight, nil

	case contracts.RiskTypeCreditNonQ:
		return p.creditWeight(p.params.CreditNonQualifying, f)

	case contracts.RiskTypeCreditVolNonQ:
		return p.params.CreditNonQualifying.VegaRiskWeight, nil

	case contracts.RiskTypeEquity:
		rw, ok := p.params.Equity.RiskWeights[f.Bucket]
		if !ok {
			return 0, fmt.Errorf("unknown bucket %q for %s", f.Bucket, f.RiskType)
		}
		return rw, nil

	case contracts.RiskTypeEquityVol:
		if rw, ok := p.params.Equity.VegaRiskWeights.Buckets[f.Bucket]; ok {
			return rw, nil
		}
		return p.params.Equity.VegaRiskWeights.Default, nil

	case contracts.RiskTypeCommodity:
		rw, ok := p.params.Commodity.RiskWeights[f.Bucket]
		if !ok {
			return 0, fmt.Errorf("unknown bucket %q for %s", f.Bucket, f.RiskType)
		}
		return rw, nil

	case contracts.RiskTypeCommodityVol:
		return p.params.Commodity.VegaRiskWeight, nil

	case contracts.RiskTypeBaseCorr:
		return p.params.BaseCorrelation.RiskWeight, nil
	}

	return 0, fmt.Errorf("no risk weight defined for risk type %q", f.RiskType)
}

func (p *Provider) fxDeltaWeight(ccy string) float64 {
	if p.fxHigh[ccy] {
		return p.params.FX.HighVolatilityRiskWeight
	}
	return p.params.FX.RiskWeight
}

func (p *Provider) creditWeight(c CreditParams, f contracts.RiskFactor) (float64, error) {
	rw, ok := c.RiskWeights[f.Bucket]
	if !ok {
		return 0, fmt.Errorf("unknown bucket %q for %s", f.Bucket, f.RiskType)
	}
	return rw, nil
}

// Correlation returns the correlation between two risk factors of the
// same risk class
func (p *Provider) Correlation(a, b contracts.RiskFactor, calcCcy string) (float64, error) {
	switch {
	case isIRFamily(a.RiskType) && isIRFamily(b.RiskType):
		return p.irCorrelation(a, b)

	case isFXFamily(a.RiskType) && isFXFamily(b.RiskType):
		if a.Qualifier == b.Qualifier {
			return 1.0, nil
		}
		return p.params.FX.Correlation, nil

	case isCreditQFamily(a.RiskType) && isCreditQFamily(b.RiskType):
		return creditCorrelation(p.params.CreditQualifying, a, b), nil

	case isCreditNonQFamily(a.RiskType) && isCreditNonQFamily(b.RiskType):
		return creditCorrelation(p.params.CreditNonQualifying, a, b), nil

	case isEquityFamily(a.RiskType) && isEquityFamily(b.RiskType):
		return p.bucketCorrelation(a, b,
			p.params.Equity.IntraBucketCorrelations,
			p.params.Equity.CrossBucketCorrelations, p.eqBucketIdx)

	case isCommodityFamily(a.RiskType) && isCommodityFamily(b.RiskType):
		return p.bucketCorrelation(a, b,
			p.params.Commodity.IntraBucketCorrelations,
			p.params.Commodity.CrossBucketCorrelations, p.coBucketIdx)

	case a.RiskType == contracts.RiskTypeBaseCorr && b.RiskType == contracts.RiskTypeBaseCorr:
		return p.params.BaseCorrelation.Correlation, nil
	}

	return 0, fmt.Errorf("no correlation defined between %q and %q", a.RiskType, b.RiskType)
}

func isIRFamily(rt contracts.RiskType) bool {
	switch rt {
	case contracts.RiskTypeIRCurve, contracts.RiskTypeXCcyBasis, contracts.RiskTypeInflation,
		contracts.RiskTypeIRVol, contracts.RiskTypeInflationVol:
		return true
	}
	return false
}

func isFXFamily(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeFX || rt == contracts.RiskTypeFXVol
}

func isCreditQFamily(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeCreditQ || rt == contracts.RiskTypeCreditVol
}

func isCreditNonQFamily(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeCreditNonQ || rt == contracts.RiskTypeCreditVolNonQ
}

func isEquityFamily(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeEquity || rt == contracts.RiskTypeEquityVol
}

func isCommodityFamily(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeCommodity || rt == contracts.RiskTypeCommodityVol
}

func isInflationType(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeInflation || rt == contracts.RiskTypeInflationVol
}

func isXCcyBasisType(rt contracts.RiskType) bool {
	return rt == contracts.RiskTypeXCcyBasis
}

// irCorrelation resolves the interest rate family. Callers pass tenors
// through Label1 and sub-curve names through Label2; a lookup with both
// labels empty compares whole curves.
func (p *Provider) irCorrelation(a, b contracts.RiskFactor) (float64, error) {
	ir := p.params.InterestRate

	switch {
	case isXCcyBasisType(a.RiskType) && isXCcyBasisType(b.RiskType):
		return 1.0, nil
	case isXCcyBasisType(a.RiskType) || isXCcyBasisType(b.RiskType):
		return ir.CrossCurrencyBasis.Correlation, nil
	case isInflationType(a.RiskType) && isInflationType(b.RiskType):
		return 1.0, nil
	case isInflationType(a.RiskType) || isInflationType(b.RiskType):
		return ir.Inflation.Correlation, nil
	}

	// 남은 건 IRCurve/IRVol 양쪽 곡선 케이스
	if a.Qualifier != b.Qualifier {
		return ir.CrossCurrencyCorrelation, nil
	}
	if a.Label1 != "" || b.Label1 != "" {
		i, ok := p.tenorIdx[strings.ToLower(a.Label1)]
		if !ok {
			return 0, fmt.Errorf("unknown tenor %q for %s", a.Label1, a.RiskType)
		}
		j, ok := p.tenorIdx[strings.ToLower(b.Label1)]
		if !ok {
			return 0, fmt.Errorf("unknown tenor %q for %s", b.Label1, b.RiskType)
		}
		return ir.TenorCorrelations[i][j], nil
	}
	if a.Label2 != b.Label2 {
		return ir.SubCurveCorrelation, nil
	}
	return 1.0, nil
}

func creditCorrelation(c CreditParams, a, b contracts.RiskFactor) float64 {
	if a.Bucket != b.Bucket {
		return c.CrossBucketCorrelation
	}
	if a.Bucket == contracts.BucketResidual {
		return c.ResidualCorrelation
	}
	if a.Qualifier == b.Qualifier {
		return c.SameQualifierCorrelation
	}
	return c.DifferentQualifierCorrelation
}

func (p *Provider) bucketCorrelation(a, b contracts.RiskFactor, intra map[string]float64, cross [][]float64, idx map[string]int) (float64, error) {
	if a.Bucket == b.Bucket {
		if a.Qualifier == b.Qualifier {
			return 1.0, nil
		}
		rho, ok := intra[a.Bucket]
		if !ok {
			return 0, fmt.Errorf("unknown bucket %q for %s", a.Bucket, a.RiskType)
		}
		return rho, nil
	}
	i, ok := idx[a.Bucket]
	if !ok {
		return 0, fmt.Errorf("unknown bucket %q for %s", a.Bucket, a.RiskType)
	}
	j, ok := idx[b.Bucket]
	if !ok {
		return 0, fmt.Errorf("unknown bucket %q for %s", b.Bucket, b.RiskType)
	}
	return cross[i][j], nil
}

// ConcentrationThreshold returns the concentration threshold in USD.
// Risk types without a threshold are uncovered and return +Inf, which
// makes the concentration risk factor collapse to 1.
func (p *Provider) ConcentrationThreshold(f contracts.RiskFactor) float64 {
	var th float64
	switch f.RiskType {
	case contracts.RiskTypeIRCurve, contracts.RiskTypeInflation:
		th = p.irDeltaTh.resolve(f.Qualifier)
	case contracts.RiskTypeIRVol, contracts.RiskTypeInflationVol:
		th = p.irVegaTh.resolve(f.Qualifier)
	case contracts.RiskTypeFX:
		th = p.fxDeltaTh.resolve(f.Qualifier)
	case contracts.RiskTypeFXVol:
		th = p.fxPairThreshold(f.Qualifier)
	case contracts.RiskTypeCreditQ:
		th = resolveBucketThreshold(p.params.CreditQualifying.Concentration.Delta, f.Bucket)
	case contracts.RiskTypeCreditVol:
		th = resolveBucketThreshold(p.params.CreditQualifying.Concentration.Vega, f.Bucket)
	case contracts.RiskTypeCreditNonQ:
		th = resolveBucketThreshold(p.params.CreditNonQualifying.Concentration.Delta, f.Bucket)
	case contracts.RiskTypeCreditVolNonQ:
		th = resolveBucketThreshold(p.params.CreditNonQualifying.Concentration.Vega, f.Bucket)
	case contracts.RiskTypeEquity:
		th = resolveBucketThreshold(p.params.Equity.Concentration.Delta, f.Bucket)
	case contracts.RiskTypeEquityVol:
		th = resolveBucketThreshold(p.params.Equity.Concentration.Vega, f.Bucket)
	case contracts.RiskTypeCommodity:
		th = resolveBucketThreshold(p.params.Commodity.Concentration.Delta, f.Bucket)
	case contracts.RiskTypeCommodityVol:
		th = resolveBucketThreshold(p.params.Commodity.Concentration.Vega, f.Bucket)
	default:
		return math.Inf(1)
	}
	if th <= 0 {
		return math.Inf(1)
	}
	return th
}

// fxPairThreshold takes the tighter of the two currencies' thresholds
func (p *Provider) fxPairThreshold(pair string) float64 {
	if len(pair) != 6 {
		return p.fxVegaTh.def
	}
	t1 := p.fxVegaTh.resolve(pair[:3])
	t2 := p.fxVegaTh.resolve(pair[3:])
	return math.Min(t1, t2)
}

var tenorRe = regexp.MustCompile(`^(\d+)(w|m|y)$`)

// CurvatureWeight returns the curvature scaling for a vol tenor:
// 0.5 * min(1, 14/t) with t in calendar days
func (p *Provider) CurvatureWeight(rt contracts.RiskType, label1 string) (float64, error) {
	m := tenorRe.FindStringSubmatch(strings.ToLower(label1))
	if m == nil {
		return 0, fmt.Errorf("unknown tenor %q for %s", label1, rt)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return 0, fmt.Errorf("unknown tenor %q for %s", label1, rt)
	}

	var days float64
	switch m[2] {
	case "w":
		days = float64(7 * n)
	case "m":
		days = math.Round(float64(n) * 365.0 / 12.0)
	case "y":
		days = float64(365 * n)
	}
	return 0.5 * math.Min(1.0, 14.0/days), nil
}

// Sigma returns the implied volatility scaling applied to vega
// sensitivities before risk weighting
func (p *Provider) Sigma(f contracts.RiskFactor, calcCcy string) (float64, error) {
	scale := math.Sqrt(365.0/14.0) / quantile99

	switch f.RiskType {
	case contracts.RiskTypeEquityVol:
		rw, ok := p.params.Equity.RiskWeights[f.Bucket]
		if !ok {
			return 0, fmt.Errorf("unknown bucket %q for %s", f.Bucket, f.RiskType)
		}
		return rw * scale, nil

	case contracts.RiskTypeCommodityVol:
		rw, ok := p.params.Commodity.RiskWeights[f.Bucket]
		if !ok {
			return 0, fmt.Errorf("unknown bucket %q for %s", f.Bucket, f.RiskType)
		}
		return rw * scale, nil

	case contracts.RiskTypeFXVol:
		if len(f.Qualifier) != 6 {
			return 0, fmt.Errorf("FX volatility qualifier %q is not a currency pair", f.Qualifier)
		}
		rw := math.Max(p.fxDeltaWeight(f.Qualifier[:3]), p.fxDeltaWeight(f.Qualifier[3:]))
		return rw * scale, nil
	}

	return 1.0, nil
}

// HistoricalVolatilityRatio returns the vega scaling for a vol risk
// type, 1.0 where the model defines none. The IR vol types return 1.0
// because their HVR is already folded into Weight.
func (p *Provider) HistoricalVolatilityRatio(rt contracts.RiskType) float64 {
	switch rt {
	case contracts.RiskTypeFXVol:
		return p.params.FX.HVR
	case contracts.RiskTypeEquityVol:
		return p.params.Equity.HVR
	case contracts.RiskTypeCommodityVol:
		return p.params.Commodity.HVR
	}
	return 1.0
}

// RiskClassCorrelation returns the correlation between two risk classes
func (p *Provider) RiskClassCorrelation(a, b contracts.RiskClass) (float64, error) {
	i, ok := p.rcIdx[a]
	if !ok {
		return 0, fmt.Errorf("unknown risk class %q", a)
	}
	j, ok := p.rcIdx[b]
	if !ok {
		return 0, fmt.Errorf("unknown risk class %q", b)
	}
	return p.params.RiskClassCorrelations.Matrix[i][j], nil
}

// CurvatureMarginScaling returns the factor applied to the total
// curvature margin, hvr_ir^-2
func (p *Provider) CurvatureMarginScaling() float64 {
	return math.Pow(p.params.InterestRate.HVR, -2.0)
}

// IsValidRiskType reports whether this model version carries
// parameters for the risk type
func (p *Provider) IsValidRiskType(rt contracts.RiskType) bool {
	if rt == contracts.RiskTypeBaseCorr {
		return p.version >= 2.0
	}
	switch rt {
	case contracts.RiskTypeEmpty, contracts.RiskTypeAll:
		return false
	}
	return true
}

// === threshold lookup ===

type ccyThresholds struct {
	def   float64
	byCcy map[string]float64
}

func newCcyThresholds(t CurrencyThresholds) ccyThresholds {
	ct := ccyThresholds{def: t.Default, byCcy: make(map[string]float64)}
	for _, g := range t.Groups {
		for _, ccy := range g.Currencies {
			ct.byCcy[ccy] = g.Threshold
		}
	}
	return ct
}

func (t ccyThresholds) resolve(ccy string) float64 {
	if v, ok := t.byCcy[ccy]; ok {
		return v
	}
	return t.def
}

func resolveBucketThreshold(t BucketThresholds, bucket string) float64 {
	if v, ok := t.Buckets[bucket]; ok {
		return v
	}
	return t.Default
}
