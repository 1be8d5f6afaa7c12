package simm

import (
	"math"

	"github.com/wonny/atlas/internal/contracts"
)

// correlatedAcrossRiskClasses combines one margin type's risk class
// entries of a product class with the inter-risk-class correlation
// matrix. The second return reports whether any entry existed.
func correlatedAcrossRiskClasses(res *Results, params contracts.ParameterProvider, pc contracts.ProductClass, mt contracts.MarginType) (float64, bool, error) {
	rcs := contracts.RiskClasses()
	var quad float64
	has := false
	for i, rcOuter := range rcs {
		if !res.Has(pc, rcOuter, mt, contracts.BucketAll) {
			continue
		}
		has = true
		imOuter := res.Get(pc, rcOuter, mt, contracts.BucketAll)
		quad += imOuter * imOuter
		for j := 0; j < i; j++ {
			rcInner := rcs[j]
			if !res.Has(pc, rcInner, mt, contracts.BucketAll) {
				continue
			}
			rho, err := params.RiskClassCorrelation(rcOuter, rcInner)
			if err != nil {
				return 0, false, err
			}
			quad += 2 * rho * imOuter * res.Get(pc, rcInner, mt, contracts.BucketAll)
		}
	}
	if !has {
		return 0, false, nil
	}
	return math.Sqrt(math.Max(quad, 0)), true, nil
}

// sumAcrossProductClasses adds one (risk class, margin type) entry over
// the margin product classes.
func sumAcrossProductClasses(res *Results, rc contracts.RiskClass, mt contracts.MarginType) (float64, bool) {
	var sum float64
	has := false
	for _, pc := range contracts.MarginProductClasses() {
		if res.Has(pc, rc, mt, contracts.BucketAll) {
			sum += res.Get(pc, rc, mt, contracts.BucketAll)
			has = true
		}
	}
	return sum, has
}

// rollUp fills the aggregate rows of one result set from its per-margin
// entries. Aggregates exist only where at least one input entry exists,
// except the portfolio total, which is always written.
//
// 집계 순서가 곧 의존 순서다: (1)이 쓴 MarginType All 행을 (2)가 읽고,
// (2)가 쓴 RiskClass All 행을 (3)이 읽는다.
func rollUp(res *Results, params contracts.ParameterProvider) error {
	pcs := contracts.MarginProductClasses()
	rcs := contracts.RiskClasses()
	mts := contracts.MarginTypes()

	// (1) 리스크 클래스 합계: 마진 타입 단순 합
	for _, pc := range pcs {
		for _, rc := range rcs {
			var sum float64
			has := false
			for _, mt := range mts {
				if res.Has(pc, rc, mt, contracts.BucketAll) {
					sum += res.Get(pc, rc, mt, contracts.BucketAll)
					has = true
				}
			}
			if has {
				res.Add(pc, rc, contracts.MarginTypeAll, contracts.BucketAll, sum, true)
			}
		}
	}

	// (2) 상품클래스 합계: 리스크 클래스 상관 결합
	for _, pc := range pcs {
		margin, has, err := correlatedAcrossRiskClasses(res, params, pc, contracts.MarginTypeAll)
		if err != nil {
			return err
		}
		if has {
			res.Add(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll, margin, true)
		}
	}

	// (3) 포트폴리오 합계: 상품클래스 단순 합, 항상 기록
	var im float64
	for _, pc := range pcs {
		if res.Has(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll) {
			im += res.Get(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll)
		}
	}
	res.Add(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll, im, true)

	// (4) 상품클래스 × 마진타입: 리스크 클래스 상관 결합
	for _, pc := range pcs {
		for _, mt := range mts {
			margin, has, err := correlatedAcrossRiskClasses(res, params, pc, mt)
			if err != nil {
				return err
			}
			if has {
				res.Add(pc, contracts.RiskClassAll, mt, contracts.BucketAll, margin, true)
			}
		}
	}

	// (5) 리스크클래스 × 마진타입: 상품클래스 단순 합
	for _, rc := range rcs {
		for _, mt := range mts {
			if sum, has := sumAcrossProductClasses(res, rc, mt); has {
				res.Add(contracts.ProductClassAll, rc, mt, contracts.BucketAll, sum, true)
			}
		}
	}

	// (6) 리스크클래스 합계: 상품클래스 단순 합
	for _, rc := range rcs {
		if sum, has := sumAcrossProductClasses(res, rc, contracts.MarginTypeAll); has {
			res.Add(contracts.ProductClassAll, rc, contracts.MarginTypeAll, contracts.BucketAll, sum, true)
		}
	}

	// (7) 마진타입 합계: (4)가 쓴 상품클래스 행의 단순 합
	for _, mt := range mts {
		var sum float64
		has := false
		for _, pc := range pcs {
			if res.Has(pc, contracts.RiskClassAll, mt, contracts.BucketAll) {
				sum += res.Get(pc, contracts.RiskClassAll, mt, contracts.BucketAll)
				has = true
			}
		}
		if has {
			res.Add(contracts.ProductClassAll, contracts.RiskClassAll, mt, contracts.BucketAll, sum, true)
		}
	}

	return nil
}
