package simm

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
)

// unionQualifiers collects the sorted distinct qualifiers of several
// risk types within one product class.
func unionQualifiers(set *crif.Set, pc contracts.ProductClass, rts ...contracts.RiskType) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rt := range rts {
		for _, q := range set.Qualifiers(pc, rt) {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	sort.Strings(out)
	return out
}

// atMostOne returns the single record of (pc, rt, qualifier), nil when
// absent, and an error when the netted set still carries several.
func atMostOne(set *crif.Set, pc contracts.ProductClass, rt contracts.RiskType, qualifier string) (*contracts.CrifRecord, error) {
	recs := set.RecordsForQualifier(pc, rt, qualifier)
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return &recs[0], nil
	}
	return nil, fmt.Errorf("expected at most one %s record for qualifier %q, got %d", rt, qualifier, len(recs))
}

// curvatureMultiplier flips the curvature exposure sign on the posted side.
func curvatureMultiplier(side contracts.SimmSide) float64 {
	if side == contracts.SidePost {
		return -1.0
	}
	return 1.0
}

// irDeltaMargin combines the tenor curve, inflation and cross-currency
// basis exposures of each currency into one quadratic form per
// currency, then aggregates currencies with the clamped S terms.
//
// 통화별 버킷: IRCurve 전체 테너 + Inflation + XCcyBasis.
// 집중리스크는 IRCurve와 Inflation 합에만 걸리고 XCcyBasis는 제외.
func (c *Calculator) irDeltaMargin(set *crif.Set, pc contracts.ProductClass) (bucketMargins, bool, error) {
	out := bucketMargins{}
	calcCcy := c.opts.CalculationCurrency

	currencies := unionQualifiers(set, pc,
		contracts.RiskTypeIRCurve, contracts.RiskTypeXCcyBasis, contracts.RiskTypeInflation)
	if len(currencies) == 0 {
		out[contracts.BucketAll] = 0
		return out, false, nil
	}

	cr := make(map[string]float64, len(currencies))
	kb := make(map[string]float64, len(currencies))
	sumWS := make(map[string]float64, len(currencies))

	for _, ccy := range currencies {
		curve := set.RecordsForQualifier(pc, contracts.RiskTypeIRCurve, ccy)
		xccy, err := atMostOne(set, pc, contracts.RiskTypeXCcyBasis, ccy)
		if err != nil {
			return nil, false, err
		}
		inflation, err := atMostOne(set, pc, contracts.RiskTypeInflation, ccy)
		if err != nil {
			return nil, false, err
		}

		var crSum float64
		for _, rec := range curve {
			crSum += rec.AmountUSD
		}
		if inflation != nil {
			crSum += inflation.AmountUSD
		}
		threshold := c.params.ConcentrationThreshold(contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, "", ""))
		cr[ccy] = math.Max(1.0, math.Sqrt(math.Abs(crSum/threshold)))

		ws := make([]float64, len(curve))
		var quad float64
		for i, rec := range curve {
			rw, err := c.params.Weight(contracts.FactorOf(rec), calcCcy)
			if err != nil {
				return nil, false, err
			}
			ws[i] = rw * rec.AmountUSD * cr[ccy]
			sumWS[ccy] += ws[i]
			quad += ws[i] * ws[i]
			for j := 0; j < i; j++ {
				inner := curve[j]
				subCurve, err := c.params.Correlation(
					contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, "", rec.Label2),
					contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, "", inner.Label2),
					calcCcy)
				if err != nil {
					return nil, false, err
				}
				tenor, err := c.params.Correlation(
					contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, rec.Label1, ""),
					contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, inner.Label1, ""),
					calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * subCurve * tenor * ws[i] * ws[j]
			}
		}

		var wsInflation float64
		if inflation != nil {
			rw, err := c.params.Weight(contracts.FactorOf(*inflation), calcCcy)
			if err != nil {
				return nil, false, err
			}
			wsInflation = rw * inflation.AmountUSD * cr[ccy]
			sumWS[ccy] += wsInflation
			quad += wsInflation * wsInflation
			rho, err := c.params.Correlation(
				contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, "", ""),
				contracts.Factor(contracts.RiskTypeInflation, "", ccy, "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			for _, w := range ws {
				quad += 2 * rho * w * wsInflation
			}
		}

		if xccy != nil {
			rw, err := c.params.Weight(contracts.FactorOf(*xccy), calcCcy)
			if err != nil {
				return nil, false, err
			}
			// XCcyBasis에는 집중리스크 미적용
			wsXccy := rw * xccy.AmountUSD
			sumWS[ccy] += wsXccy
			quad += wsXccy * wsXccy
			rho, err := c.params.Correlation(
				contracts.Factor(contracts.RiskTypeIRCurve, "", ccy, "", ""),
				contracts.Factor(contracts.RiskTypeXCcyBasis, "", ccy, "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			for _, w := range ws {
				quad += 2 * rho * w * wsXccy
			}
			if inflation != nil {
				rhoInf, err := c.params.Correlation(
					contracts.Factor(contracts.RiskTypeInflation, "", ccy, "", ""),
					contracts.Factor(contracts.RiskTypeXCcyBasis, "", ccy, "", ""),
					calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * rhoInf * wsInflation * wsXccy
			}
		}

		kb[ccy] = math.Sqrt(math.Max(quad, 0))
	}

	var total float64
	for i, co := range currencies {
		ko := kb[co]
		total += ko * ko
		so := clamp(sumWS[co], ko)
		for j := 0; j < i; j++ {
			ci := currencies[j]
			si := clamp(sumWS[ci], kb[ci])
			g := crRatio(cr[co], cr[ci])
			rho, err := c.params.Correlation(
				contracts.Factor(contracts.RiskTypeIRCurve, "", co, "", ""),
				contracts.Factor(contracts.RiskTypeIRCurve, "", ci, "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			total += 2 * so * si * rho * g
		}
	}
	total = math.Sqrt(math.Max(total, 0))

	for ccy, k := range kb {
		out[ccy] = k
	}
	out[contracts.BucketAll] = total
	return out, true, nil
}

// irVegaMargin aggregates IRVol and InflationVol together per currency.
// The historical volatility ratio sits inside the risk weight, so the
// amounts go in unscaled.
func (c *Calculator) irVegaMargin(set *crif.Set, pc contracts.ProductClass) (bucketMargins, bool, error) {
	out := bucketMargins{}
	calcCcy := c.opts.CalculationCurrency

	currencies := unionQualifiers(set, pc,
		contracts.RiskTypeIRVol, contracts.RiskTypeInflationVol)
	if len(currencies) == 0 {
		out[contracts.BucketAll] = 0
		return out, false, nil
	}

	cr := make(map[string]float64, len(currencies))
	kb := make(map[string]float64, len(currencies))
	sumWS := make(map[string]float64, len(currencies))

	for _, ccy := range currencies {
		irVol := set.RecordsForQualifier(pc, contracts.RiskTypeIRVol, ccy)
		infVol := set.RecordsForQualifier(pc, contracts.RiskTypeInflationVol, ccy)

		var crSum float64
		for _, rec := range irVol {
			crSum += rec.AmountUSD
		}
		for _, rec := range infVol {
			crSum += rec.AmountUSD
		}
		threshold := c.params.ConcentrationThreshold(contracts.Factor(contracts.RiskTypeIRVol, "", ccy, "", ""))
		cr[ccy] = math.Max(1.0, math.Sqrt(math.Abs(crSum/threshold)))

		// 금리 볼과 인플레이션 볼을 한 리스트로 합쳐 이차형식 계산
		recs := make([]contracts.CrifRecord, 0, len(irVol)+len(infVol))
		recs = append(recs, irVol...)
		recs = append(recs, infVol...)

		ws := make([]float64, len(recs))
		var quad float64
		for i, rec := range recs {
			rw, err := c.params.Weight(contracts.FactorOf(rec), calcCcy)
			if err != nil {
				return nil, false, err
			}
			ws[i] = rw * rec.AmountUSD * cr[ccy]
			sumWS[ccy] += ws[i]
			quad += ws[i] * ws[i]
			for j := 0; j < i; j++ {
				rho, err := c.params.Correlation(contracts.FactorOf(rec), contracts.FactorOf(recs[j]), calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * rho * ws[i] * ws[j]
			}
		}
		kb[ccy] = math.Sqrt(math.Max(quad, 0))
	}

	var total float64
	for i, co := range currencies {
		ko := kb[co]
		total += ko * ko
		so := clamp(sumWS[co], ko)
		for j := 0; j < i; j++ {
			ci := currencies[j]
			si := clamp(sumWS[ci], kb[ci])
			g := crRatio(cr[co], cr[ci])
			rho, err := c.params.Correlation(
				contracts.Factor(contracts.RiskTypeIRVol, "", co, "", ""),
				contracts.Factor(contracts.RiskTypeIRVol, "", ci, "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			total += 2 * so * si * rho * g
		}
	}
	total = math.Sqrt(math.Max(total, 0))

	for ccy, k := range kb {
		out[ccy] = k
	}
	out[contracts.BucketAll] = total
	return out, true, nil
}

// irCurvatureMargin runs the curvature aggregation over IRVol records
// with squared correlations and the λ(θ) tail factor. From calibration
// version 1.0 onward each currency's InflationVol records fold into a
// single extra exposure.
func (c *Calculator) irCurvatureMargin(set *crif.Set, pc contracts.ProductClass, side contracts.SimmSide) (bucketMargins, bool, error) {
	out := bucketMargins{}
	calcCcy := c.opts.CalculationCurrency
	multiplier := curvatureMultiplier(side)
	foldInflation := c.params.VersionNumber() > 1.0

	currencies := unionQualifiers(set, pc,
		contracts.RiskTypeIRVol, contracts.RiskTypeInflationVol)
	if len(currencies) == 0 {
		out[contracts.BucketAll] = 0
		return out, false, nil
	}

	kb := make(map[string]float64, len(currencies))
	sumWS := make(map[string]float64, len(currencies))
	var sumAll, sumAbsAll float64

	for _, ccy := range currencies {
		irVol := set.RecordsForQualifier(pc, contracts.RiskTypeIRVol, ccy)
		infVol := set.RecordsForQualifier(pc, contracts.RiskTypeInflationVol, ccy)

		ws := make([]float64, len(irVol))
		var quad float64
		for i, rec := range irVol {
			sf, err := c.params.CurvatureWeight(rec.RiskType, rec.Label1)
			if err != nil {
				return nil, false, err
			}
			ws[i] = sf * (rec.AmountUSD * multiplier)
			sumWS[ccy] += ws[i]
			sumAll += ws[i]
			sumAbsAll += math.Abs(ws[i])
			quad += ws[i] * ws[i]
			for j := 0; j < i; j++ {
				rho, err := c.params.Correlation(
					contracts.Factor(contracts.RiskTypeIRVol, "", ccy, rec.Label1, ""),
					contracts.Factor(contracts.RiskTypeIRVol, "", ccy, irVol[j].Label1, ""),
					calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * rho * rho * ws[i] * ws[j]
			}
		}

		if foldInflation && len(infVol) > 0 {
			var wsInf float64
			for _, rec := range infVol {
				sf, err := c.params.CurvatureWeight(rec.RiskType, rec.Label1)
				if err != nil {
					return nil, false, err
				}
				wsInf += sf * (rec.AmountUSD * multiplier)
			}
			sumWS[ccy] += wsInf
			sumAll += wsInf
			sumAbsAll += math.Abs(wsInf)
			quad += wsInf * wsInf
			for i, rec := range irVol {
				rho, err := c.params.Correlation(
					contracts.Factor(contracts.RiskTypeInflationVol, "", ccy, "", ""),
					contracts.Factor(contracts.RiskTypeIRVol, "", ccy, rec.Label1, ""),
					calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * rho * rho * wsInf * ws[i]
			}
		}

		kb[ccy] = math.Sqrt(math.Max(quad, 0))
	}

	// 곡률 익스포저가 전무하면 마진 0
	if closeEnough(sumAbsAll, 0) {
		out[contracts.BucketAll] = 0
		return out, true, nil
	}

	theta := math.Min(sumAll/sumAbsAll, 0)

	var total float64
	for i, co := range currencies {
		ko := kb[co]
		total += ko * ko
		so := clamp(sumWS[co], ko)
		for j := 0; j < i; j++ {
			ci := currencies[j]
			si := clamp(sumWS[ci], kb[ci])
			rho, err := c.params.Correlation(
				contracts.Factor(contracts.RiskTypeIRVol, "", co, "", ""),
				contracts.Factor(contracts.RiskTypeIRVol, "", ci, "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			total += 2 * so * si * rho * rho
		}
	}
	margin := sumAll + lambda(theta)*math.Sqrt(math.Max(total, 0))

	for ccy, k := range kb {
		out[ccy] = k
	}
	out[contracts.BucketAll] = c.params.CurvatureMarginScaling() * math.Max(margin, 0)
	return out, true, nil
}
