package simm

import (
	"math"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
)

// curvatureMargin computes the bucketed curvature margin of one
// product class and risk type. Correlations enter squared, the bucket
// totals carry the λ(θ) tail factor, and the Residual bucket gets its
// own θ before being added on top.
//
// perLabelAbs가 켜지면 |CVR| 합계를 레코드 단위로 집계하고, 꺼지면
// 퀄리파이어별로 먼저 상계한 뒤 절대값을 취한다.
func (c *Calculator) curvatureMargin(set *crif.Set, pc contracts.ProductClass, rt contracts.RiskType, side contracts.SimmSide, perLabelAbs bool) (bucketMargins, bool, error) {
	out := bucketMargins{}
	calcCcy := c.opts.CalculationCurrency
	riskClassIsFX := rt == contracts.RiskTypeFX || rt == contracts.RiskTypeFXVol
	multiplier := curvatureMultiplier(side)
	// 버전 2.2부터 주식 버킷 12의 곡률 익스포저는 0 처리
	zeroEquityBucket12 := rt == contracts.RiskTypeEquityVol && c.params.VersionNumber() >= 2.2

	buckets := set.Buckets(pc, rt)
	if len(buckets) == 0 {
		out[contracts.BucketAll] = 0
		return out, false, nil
	}

	kb := make(map[string]float64, len(buckets))
	sumWS := make(map[string]float64, len(buckets))
	sumAbsWS := make(map[string]float64, len(buckets))

	for _, bucket := range buckets {
		recs := set.RecordsForBucket(pc, rt, bucket)
		absByQualifier := make(map[string]float64)
		ws := make([]float64, len(recs))
		var quad float64
		for i, rec := range recs {
			sf, err := c.params.CurvatureWeight(rt, rec.Label1)
			if err != nil {
				return nil, false, err
			}
			sigma, err := c.params.Sigma(contracts.FactorOf(rec), calcCcy)
			if err != nil {
				return nil, false, err
			}
			w := sf * ((rec.AmountUSD * multiplier) * sigma)
			if zeroEquityBucket12 && bucket == "12" {
				w = 0
			}
			ws[i] = w
			sumWS[bucket] += w
			if perLabelAbs {
				absByQualifier[rec.Qualifier] += math.Abs(w)
			} else {
				absByQualifier[rec.Qualifier] += w
			}
			quad += w * w
			for j := 0; j < i; j++ {
				rho, err := c.params.Correlation(contracts.FactorOf(rec), contracts.FactorOf(recs[j]), calcCcy)
				if err != nil {
					return nil, false, err
				}
				quad += 2 * rho * rho * w * ws[j]
			}
			if riskClassIsFX {
				out[rec.Qualifier] += w
			}
		}
		kb[bucket] = math.Sqrt(math.Max(quad, 0))
		for _, v := range absByQualifier {
			sumAbsWS[bucket] += math.Abs(v)
		}
	}

	hasResidual := false
	nonRes := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if b == contracts.BucketResidual {
			hasResidual = true
			continue
		}
		nonRes = append(nonRes, b)
	}

	var sumSensis, sumAbsSensis float64
	for _, b := range nonRes {
		sumSensis += sumWS[b]
		sumAbsSensis += sumAbsWS[b]
	}

	var total float64
	if !closeEnough(sumAbsSensis, 0) {
		theta := math.Min(sumSensis/sumAbsSensis, 0)
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
				total += 2 * so * si * gamma * gamma
			}
		}
		total = math.Max(sumSensis+lambda(theta)*math.Sqrt(math.Max(total, 0)), 0)
	}

	// Residual 버킷은 자체 θ로 마진을 구해 gross로 가산
	residualExported := false
	var residualMargin float64
	if hasResidual && !closeEnough(sumAbsWS[contracts.BucketResidual], 0) {
		thetaRes := math.Min(sumWS[contracts.BucketResidual]/sumAbsWS[contracts.BucketResidual], 0)
		residualMargin = math.Max(sumWS[contracts.BucketResidual]+lambda(thetaRes)*kb[contracts.BucketResidual], 0)
		residualExported = true
		total += residualMargin
	}

	if riskClassIsFX {
		for q, v := range out {
			out[q] = math.Abs(v)
		}
	} else {
		for _, b := range nonRes {
			out[b] = kb[b]
		}
		if residualExported {
			out[contracts.BucketResidual] = residualMargin
		}
	}
	out[contracts.BucketAll] = total
	return out, true, nil
}
