package simm

import (
	"math"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
)

// bucketMargins maps a bucket (for FX risk a currency, plus the "All"
// total) to its margin contribution in USD.
type bucketMargins map[string]float64

// crRatio is the concentration scaling f applied to a cross pair: the
// smaller factor over the larger.
func crRatio(a, b float64) float64 {
	return math.Min(a, b) / math.Max(a, b)
}

// repQualifier returns the representative qualifier of a bucket used
// for cross-bucket correlation lookups.
func repQualifier(set *crif.Set, pc contracts.ProductClass, rt contracts.RiskType, bucket string) string {
	return set.QualifiersForBucket(pc, rt, bucket)[0]
}

// margin computes the bucketed delta or vega margin of one product
// class and risk type. The second return reports whether any records
// applied.
//
// 버킷별 K_b를 집중리스크 반영 이차형식으로 구하고, 버킷 간에는
// S_b 클램프와 γ 상관으로 결합한다. Residual 버킷은 상관 없이 가산.
func (c *Calculator) margin(set *crif.Set, pc contracts.ProductClass, rt contracts.RiskType) (bucketMargins, bool, error) {
	out := bucketMargins{}
	calcCcy := c.opts.CalculationCurrency
	riskClassIsFX := rt == contracts.RiskTypeFX || rt == contracts.RiskTypeFXVol
	hvr := c.params.HistoricalVolatilityRatio(rt)

	buckets := set.Buckets(pc, rt)
	if len(buckets) == 0 {
		out[contracts.BucketAll] = 0
		return out, false, nil
	}

	kb := make(map[string]float64, len(buckets))
	sumWS := make(map[string]float64, len(buckets))

	for _, bucket := range buckets {
		// 집중리스크 CR_k: 퀄리파이어별 스케일 민감도 합 기준
		cr := make(map[string]float64)
		for _, q := range set.QualifiersForBucket(pc, rt, bucket) {
			if rt == contracts.RiskTypeFX && q == calcCcy {
				continue
			}
			var sum float64
			for _, rec := range set.RecordsForBucketQualifier(pc, rt, bucket, q) {
				sigma, err := c.params.Sigma(contracts.FactorOf(rec), calcCcy)
				if err != nil {
					return nil, false, err
				}
				sum += rec.AmountUSD * sigma * hvr
			}
			threshold := c.params.ConcentrationThreshold(contracts.Factor(rt, bucket, q, "", ""))
			cr[q] = math.Max(1.0, math.Sqrt(math.Abs(sum/threshold)))
		}

		recs := set.RecordsForBucket(pc, rt, bucket)
		ws := make([]float64, len(recs))
		var quad float64
		for i, rec := range recs {
			// 계산 통화 자기 자신에 대한 FX 델타는 0 취급
			if rt == contracts.RiskTypeFX && rec.Qualifier == calcCcy {
				continue
			}
			rw, err := c.params.Weight(contracts.FactorOf(rec), calcCcy)
			if err != nil {
				return nil, false, err
			}
			sigma, err := c.params.Sigma(contracts.FactorOf(rec), calcCcy)
			if err != nil {
				return nil, false, err
			}
			ws[i] = rw * (rec.AmountUSD * sigma * hvr) * cr[rec.Qualifier]
			sumWS[bucket] += ws[i]
			quad += ws[i] * ws[i]
			for j := 0; j < i; j++ {
				if rt == contracts.RiskTypeFX && recs[j].Qualifier == calcCcy {
					continue
				}
				rho, err := c.params.Correlation(contracts.FactorOf(rec), contracts.FactorOf(recs[j]), calcCcy)
				if err != nil {
					return nil, false, err
				}
				f := crRatio(cr[rec.Qualifier], cr[recs[j].Qualifier])
				quad += 2 * rho * f * ws[i] * ws[j]
			}
			// FX 리스크 클래스는 통화별 순 가중 민감도를 함께 보고
			if riskClassIsFX {
				out[rec.Qualifier] += ws[i]
			}
		}
		kb[bucket] = math.Sqrt(math.Max(quad, 0))
	}

	// Residual은 버킷 간 상관 집계에서 빠지고 마지막에 단순 가산
	var residual float64
	nonRes := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if b == contracts.BucketResidual {
			residual = kb[b]
			continue
		}
		nonRes = append(nonRes, b)
	}

	var total float64
	for i, bo := range nonRes {
		ko := kb[bo]
		total += ko * ko
		so := clamp(sumWS[bo], ko)
		for j := 0; j < i; j++ {
			bi := nonRes[j]
			si := clamp(sumWS[bi], kb[bi])
			gamma, err := c.params.Correlation(
				contracts.Factor(rt, bo, repQualifier(set, pc, rt, bo), "", ""),
				contracts.Factor(rt, bi, repQualifier(set, pc, rt, bi), "", ""),
				calcCcy)
			if err != nil {
				return nil, false, err
			}
			total += 2 * so * si * gamma
		}
	}
	total = math.Sqrt(math.Max(total, 0))
	total += residual

	if !closeEnough(residual, 0) {
		out[contracts.BucketResidual] = residual
	}
	if riskClassIsFX {
		for q, v := range out {
			out[q] = math.Abs(v)
		}
	} else {
		for _, b := range nonRes {
			out[b] = kb[b]
		}
	}
	out[contracts.BucketAll] = total
	return out, true, nil
}
