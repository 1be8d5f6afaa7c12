package simm

import (
	"fmt"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
)

// fanOutAddOn accumulates one add-on amount into the four aggregate
// rows it affects: the product class and portfolio totals, each under
// AdditionalIM and under the overall margin type.
func fanOutAddOn(res *Results, pc contracts.ProductClass, margin float64) {
	res.Add(pc, contracts.RiskClassAll, contracts.MarginTypeAdditionalIM, contracts.BucketAll, margin, false)
	res.Add(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll, margin, false)
	res.Add(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAdditionalIM, contracts.BucketAll, margin, false)
	res.Add(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll, margin, false)
}

// addOnMargins applies the non-sensitivity add-ons after the rollup:
// product class multipliers, fixed amounts and notional factors.
// Totals are adjusted in place, so this must run exactly once per
// result set.
func (c *Calculator) addOnMargins(res *Results, set *crif.Set) error {
	// (배수 - 1) × 상품클래스 IM
	for _, rec := range set.RecordsFor(contracts.ProductClassEmpty, contracts.RiskTypeProductClassMultiplier) {
		pc, err := contracts.ParseProductClass(rec.Qualifier)
		if err != nil {
			return fmt.Errorf("product class multiplier: %w", err)
		}
		if !res.Has(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll) {
			continue
		}
		// 배수는 원천 통화 금액으로 전달된다
		factor := rec.Amount
		if factor < 0 {
			return fmt.Errorf("product class multiplier for %s must be non-negative, got %v", pc, factor)
		}
		im := res.Get(pc, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll)
		fanOutAddOn(res, pc, (factor-1.0)*im)
	}

	// 고정 금액 애드온 (USD)
	for _, rec := range set.RecordsFor(contracts.ProductClassEmpty, contracts.RiskTypeAddOnFixedAmount) {
		fanOutAddOn(res, contracts.ProductClassAddOnFixedAmount, rec.AmountUSD)
	}

	// 명목금액 × 비율(%) 애드온
	for _, rec := range set.RecordsFor(contracts.ProductClassEmpty, contracts.RiskTypeAddOnNotionalFactor) {
		notionals := set.RecordsForQualifier(contracts.ProductClassEmpty, contracts.RiskTypeNotional, rec.Qualifier)
		if len(notionals) > 1 {
			return fmt.Errorf("expected at most one %s record for qualifier %q, got %d",
				contracts.RiskTypeNotional, rec.Qualifier, len(notionals))
		}
		if len(notionals) == 0 {
			continue
		}
		fanOutAddOn(res, contracts.ProductClassAddOnNotionalFactor, notionals[0].AmountUSD*rec.Amount/100.0)
	}

	return nil
}
