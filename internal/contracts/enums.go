package contracts

import "fmt"

// ProductClass is the SIMM product class of a sensitivity record
// ⭐ SSOT: 상품 클래스 분류는 여기서만 정의
type ProductClass string

const (
	ProductClassRatesFX                ProductClass = "RatesFX"
	ProductClassCredit                 ProductClass = "Credit"
	ProductClassEquity                 ProductClass = "Equity"
	ProductClassCommodity              ProductClass = "Commodity"
	ProductClassEmpty                  ProductClass = ""
	ProductClassOther                  ProductClass = "Other"
	ProductClassAddOnNotionalFactor    ProductClass = "AddOnNotionalFactor"
	ProductClassAddOnFixedAmount       ProductClass = "AddOnFixedAmount"
	ProductClassProductClassMultiplier ProductClass = "ProductClassMultiplier"
	ProductClassAll                    ProductClass = "All"
)

// MarginProductClasses lists the product classes that carry sensitivity-based
// margin, in reporting order. Add-on classes are handled separately.
func MarginProductClasses() []ProductClass {
	return []ProductClass{
		ProductClassRatesFX,
		ProductClassCredit,
		ProductClassEquity,
		ProductClassCommodity,
		ProductClassEmpty,
		ProductClassOther,
	}
}

// AllProductClasses lists every product class including add-ons, in reporting order
func AllProductClasses() []ProductClass {
	return append(MarginProductClasses(),
		ProductClassAddOnNotionalFactor,
		ProductClassAddOnFixedAmount,
		ProductClassProductClassMultiplier,
		ProductClassAll,
	)
}

// IsAddOn reports whether the product class is one of the add-on pseudo classes
func (pc ProductClass) IsAddOn() bool {
	switch pc {
	case ProductClassAddOnNotionalFactor, ProductClassAddOnFixedAmount, ProductClassProductClassMultiplier:
		return true
	}
	return false
}

// ParseProductClass parses a CRIF product class string
func ParseProductClass(s string) (ProductClass, error) {
	switch s {
	case "RatesFX", "RatesFx":
		return ProductClassRatesFX, nil
	case "Credit":
		return ProductClassCredit, nil
	case "Equity":
		return ProductClassEquity, nil
	case "Commodity":
		return ProductClassCommodity, nil
	case "", "Empty":
		return ProductClassEmpty, nil
	case "Other":
		return ProductClassOther, nil
	case "AddOnNotionalFactor":
		return ProductClassAddOnNotionalFactor, nil
	case "AddOnFixedAmount":
		return ProductClassAddOnFixedAmount, nil
	case "ProductClassMultiplier":
		return ProductClassProductClassMultiplier, nil
	case "All":
		return ProductClassAll, nil
	}
	return ProductClassEmpty, fmt.Errorf("unknown product class %q", s)
}

func (pc ProductClass) String() string {
	if pc == ProductClassEmpty {
		return "Empty"
	}
	return string(pc)
}

// RiskType is the CRIF risk type of a sensitivity record.
// Values follow the CRIF column convention (Risk_* for sensitivities,
// Param_* for SIMM add-on parameters).
type RiskType string

const (
	RiskTypeIRCurve                RiskType = "Risk_IRCurve"
	RiskTypeXCcyBasis              RiskType = "Risk_XCcyBasis"
	RiskTypeInflation              RiskType = "Risk_Inflation"
	RiskTypeIRVol                  RiskType = "Risk_IRVol"
	RiskTypeInflationVol           RiskType = "Risk_InflationVol"
	RiskTypeFX                     RiskType = "Risk_FX"
	RiskTypeFXVol                  RiskType = "Risk_FXVol"
	RiskTypeCreditQ                RiskType = "Risk_CreditQ"
	RiskTypeCreditVol              RiskType = "Risk_CreditVol"
	RiskTypeCreditNonQ             RiskType = "Risk_CreditNonQ"
	RiskTypeCreditVolNonQ          RiskType = "Risk_CreditVolNonQ"
	RiskTypeEquity                 RiskType = "Risk_Equity"
	RiskTypeEquityVol              RiskType = "Risk_EquityVol"
	RiskTypeCommodity              RiskType = "Risk_Commodity"
	RiskTypeCommodityVol           RiskType = "Risk_CommodityVol"
	RiskTypeBaseCorr               RiskType = "Risk_BaseCorr"
	RiskTypeNotional               RiskType = "Notional"
	RiskTypePV                     RiskType = "PV"
	RiskTypeAddOnFixedAmount       RiskType = "Param_AddOnFixedAmount"
	RiskTypeAddOnNotionalFactor    RiskType = "Param_AddOnNotionalFactor"
	RiskTypeProductClassMultiplier RiskType = "Param_ProductClassMultiplier"
	RiskTypeEmpty                  RiskType = ""
	RiskTypeAll                    RiskType = "All"
)

var riskTypes = map[string]RiskType{
	"Risk_IRCurve":                 RiskTypeIRCurve,
	"Risk_XCcyBasis":               RiskTypeXCcyBasis,
	"Risk_Inflation":               RiskTypeInflation,
	"Risk_IRVol":                   RiskTypeIRVol,
	"Risk_InflationVol":            RiskTypeInflationVol,
	"Risk_FX":                      RiskTypeFX,
	"Risk_FXVol":                   RiskTypeFXVol,
	"Risk_CreditQ":                 RiskTypeCreditQ,
	"Risk_CreditVol":               RiskTypeCreditVol,
	"Risk_CreditNonQ":              RiskTypeCreditNonQ,
	"Risk_CreditVolNonQ":           RiskTypeCreditVolNonQ,
	"Risk_Equity":                  RiskTypeEquity,
	"Risk_EquityVol":               RiskTypeEquityVol,
	"Risk_Commodity":               RiskTypeCommodity,
	"Risk_CommodityVol":            RiskTypeCommodityVol,
	"Risk_BaseCorr":                RiskTypeBaseCorr,
	"Notional":                     RiskTypeNotional,
	"PV":                           RiskTypePV,
	"Param_AddOnFixedAmount":       RiskTypeAddOnFixedAmount,
	"Param_AddOnNotionalFactor":    RiskTypeAddOnNotionalFactor,
	"Param_ProductClassMultiplier": RiskTypeProductClassMultiplier,
	"All":                          RiskTypeAll,
}

// ParseRiskType parses a CRIF risk type string
func ParseRiskType(s string) (RiskType, error) {
	if s == "" {
		return RiskTypeEmpty, nil
	}
	if rt, ok := riskTypes[s]; ok {
		return rt, nil
	}
	return RiskTypeEmpty, fmt.Errorf("unknown risk type %q", s)
}

func (rt RiskType) String() string {
	if rt == RiskTypeEmpty {
		return "Empty"
	}
	return string(rt)
}

// IsSimmParameter reports whether the risk type is an add-on parameter
// rather than a sensitivity. Parameter records never carry trade IDs into
// regulation trade-ID sets and are skipped by the margin calculators.
func (rt RiskType) IsSimmParameter() bool {
	switch rt {
	case RiskTypeAddOnFixedAmount, RiskTypeAddOnNotionalFactor, RiskTypeProductClassMultiplier:
		return true
	}
	return false
}

// RiskClass returns the SIMM risk class the risk type belongs to.
// Notional, PV and the add-on parameters have no risk class (RiskClassAll).
func (rt RiskType) RiskClass() RiskClass {
	switch rt {
	case RiskTypeIRCurve, RiskTypeXCcyBasis, RiskTypeInflation, RiskTypeIRVol, RiskTypeInflationVol:
		return RiskClassInterestRate
	case RiskTypeCreditQ, RiskTypeCreditVol, RiskTypeBaseCorr:
		return RiskClassCreditQualifying
	case RiskTypeCreditNonQ, RiskTypeCreditVolNonQ:
		return RiskClassCreditNonQualifying
	case RiskTypeEquity, RiskTypeEquityVol:
		return RiskClassEquity
	case RiskTypeCommodity, RiskTypeCommodityVol:
		return RiskClassCommodity
	case RiskTypeFX, RiskTypeFXVol:
		return RiskClassFX
	}
	return RiskClassAll
}

// IsVolatility reports whether the risk type is a vega/volatility type
func (rt RiskType) IsVolatility() bool {
	switch rt {
	case RiskTypeIRVol, RiskTypeInflationVol, RiskTypeFXVol, RiskTypeCreditVol,
		RiskTypeCreditVolNonQ, RiskTypeEquityVol, RiskTypeCommodityVol:
		return true
	}
	return false
}

// RiskClass is the SIMM risk class (aggregation axis above buckets)
type RiskClass string

const (
	RiskClassInterestRate        RiskClass = "InterestRate"
	RiskClassCreditQualifying    RiskClass = "CreditQualifying"
	RiskClassCreditNonQualifying RiskClass = "CreditNonQualifying"
	RiskClassEquity              RiskClass = "Equity"
	RiskClassCommodity           RiskClass = "Commodity"
	RiskClassFX                  RiskClass = "FX"
	RiskClassAll                 RiskClass = "All"
)

// RiskClasses lists the six SIMM risk classes in reporting order
func RiskClasses() []RiskClass {
	return []RiskClass{
		RiskClassInterestRate,
		RiskClassCreditQualifying,
		RiskClassCreditNonQualifying,
		RiskClassEquity,
		RiskClassCommodity,
		RiskClassFX,
	}
}

// ParseRiskClass parses a risk class string
func ParseRiskClass(s string) (RiskClass, error) {
	switch s {
	case "InterestRate":
		return RiskClassInterestRate, nil
	case "CreditQualifying":
		return RiskClassCreditQualifying, nil
	case "CreditNonQualifying":
		return RiskClassCreditNonQualifying, nil
	case "Equity":
		return RiskClassEquity, nil
	case "Commodity":
		return RiskClassCommodity, nil
	case "FX":
		return RiskClassFX, nil
	case "All":
		return RiskClassAll, nil
	}
	return RiskClassAll, fmt.Errorf("unknown risk class %q", s)
}

func (rc RiskClass) String() string { return string(rc) }

// MarginType is the SIMM margin measure within a risk class
type MarginType string

const (
	MarginTypeDelta        MarginType = "Delta"
	MarginTypeVega         MarginType = "Vega"
	MarginTypeCurvature    MarginType = "Curvature"
	MarginTypeBaseCorr     MarginType = "BaseCorr"
	MarginTypeAdditionalIM MarginType = "AdditionalIM"
	MarginTypeAll          MarginType = "All"
)

// MarginTypes lists the margin measures in reporting order
func MarginTypes() []MarginType {
	return []MarginType{
		MarginTypeDelta,
		MarginTypeVega,
		MarginTypeCurvature,
		MarginTypeBaseCorr,
		MarginTypeAdditionalIM,
	}
}

// ParseMarginType parses a margin type string
func ParseMarginType(s string) (MarginType, error) {
	switch s {
	case "Delta":
		return MarginTypeDelta, nil
	case "Vega":
		return MarginTypeVega, nil
	case "Curvature":
		return MarginTypeCurvature, nil
	case "BaseCorr":
		return MarginTypeBaseCorr, nil
	case "AdditionalIM":
		return MarginTypeAdditionalIM, nil
	case "All":
		return MarginTypeAll, nil
	}
	return MarginTypeAll, fmt.Errorf("unknown margin type %q", s)
}

func (mt MarginType) String() string { return string(mt) }

// SimmSide distinguishes margin we call from margin we post
type SimmSide string

const (
	SideCall SimmSide = "Call"
	SidePost SimmSide = "Post"
)

// Sides lists both margin sides in reporting order
func Sides() []SimmSide {
	return []SimmSide{SideCall, SidePost}
}

// ParseSide parses a side string
func ParseSide(s string) (SimmSide, error) {
	switch s {
	case "Call":
		return SideCall, nil
	case "Post":
		return SidePost, nil
	}
	return SideCall, fmt.Errorf("unknown SIMM side %q", s)
}

func (s SimmSide) String() string { return string(s) }
