package contracts

import (
	"fmt"
	"strings"
)

// Well-known CRIF marker values
const (
	IMModelSIMM     = "SIMM"
	IMModelSchedule = "Schedule"

	RegulationUnspecified = "Unspecified"
	RegulationExcluded    = "Excluded"
	RegulationCFTC        = "CFTC"
	RegulationSEC         = "SEC"

	BucketResidual = "Residual"
	BucketAll      = "All"
)

// NettingSetDetails is the composite key identifying a netting set
// ⭐ SSOT: 넷팅셋 식별자는 이 구조체로만 표현 (map key로 사용 가능)
type NettingSetDetails struct {
	ID                string `json:"id"`
	AgreementType     string `json:"agreement_type,omitempty"`
	CallType          string `json:"call_type,omitempty"`
	InitialMarginType string `json:"initial_margin_type,omitempty"`
	LegalEntityID     string `json:"legal_entity_id,omitempty"`
}

// NewNettingSet builds a details key carrying only the portfolio id
func NewNettingSet(id string) NettingSetDetails {
	return NettingSetDetails{ID: id}
}

// Empty reports whether no identifying field is set
func (n NettingSetDetails) Empty() bool {
	return n == NettingSetDetails{}
}

// HasOptionalFields reports whether any discriminator beyond the id is set
func (n NettingSetDetails) HasOptionalFields() bool {
	return n.AgreementType != "" || n.CallType != "" || n.InitialMarginType != "" || n.LegalEntityID != ""
}

// NettingSetFieldNames returns the report column names for netting set keys
func NettingSetFieldNames(includeOptional bool) []string {
	names := []string{"Portfolio"}
	if includeOptional {
		names = append(names, "AgreementType", "CallType", "InitialMarginType", "LegalEntityID")
	}
	return names
}

// FieldValues returns the report column values matching NettingSetFieldNames
func (n NettingSetDetails) FieldValues(includeOptional bool) []string {
	values := []string{n.ID}
	if includeOptional {
		values = append(values, n.AgreementType, n.CallType, n.InitialMarginType, n.LegalEntityID)
	}
	return values
}

func (n NettingSetDetails) String() string {
	if !n.HasOptionalFields() {
		return n.ID
	}
	return strings.Join([]string{n.ID, n.AgreementType, n.CallType, n.InitialMarginType, n.LegalEntityID}, "|")
}

// CrifRecord is one net sensitivity (or SIMM add-on parameter) row.
// Records are immutable once netted; the engine never mutates them.
// ⭐ SSOT: CRIF 레코드 구조는 여기서만 정의
type CrifRecord struct {
	NettingSet         NettingSetDetails `json:"netting_set"`
	TradeID            string            `json:"trade_id,omitempty"`
	IMModel            string            `json:"im_model,omitempty"` // SIMM or Schedule
	CollectRegulations string            `json:"collect_regulations,omitempty"`
	PostRegulations    string            `json:"post_regulations,omitempty"`
	ProductClass       ProductClass      `json:"product_class"`
	RiskType           RiskType          `json:"risk_type"`
	Qualifier          string            `json:"qualifier,omitempty"`
	Bucket             string            `json:"bucket,omitempty"`
	Label1             string            `json:"label1,omitempty"`
	Label2             string            `json:"label2,omitempty"`
	AmountCurrency     string            `json:"amount_currency,omitempty"`
	Amount             float64           `json:"amount"`
	AmountUSD          float64           `json:"amount_usd"`
}

// RiskClass returns the SIMM risk class of the record's risk type
func (r CrifRecord) RiskClass() RiskClass {
	return r.RiskType.RiskClass()
}

// IsSchedule reports whether the record belongs to the Schedule IM model
// and is therefore excluded from SIMM entirely
func (r CrifRecord) IsSchedule() bool {
	return r.IMModel == IMModelSchedule
}

// IsSimmParameter reports whether the record is an add-on parameter row
func (r CrifRecord) IsSimmParameter() bool {
	return r.RiskType.IsSimmParameter()
}

// NettedKey is the identity of a netted record. Amounts and the native
// amount currency are deliberately excluded so that the same risk booked
// under different currencies compares equal (CFTC/SEC merge rule).
type NettedKey struct {
	NettingSet   NettingSetDetails
	ProductClass ProductClass
	RiskType     RiskType
	Qualifier    string
	Bucket       string
	Label1       string
	Label2       string
}

// NettedKey returns the record's netted identity
func (r CrifRecord) NettedKey() NettedKey {
	return NettedKey{
		NettingSet:   r.NettingSet,
		ProductClass: r.ProductClass,
		RiskType:     r.RiskType,
		Qualifier:    r.Qualifier,
		Bucket:       r.Bucket,
		Label1:       r.Label1,
		Label2:       r.Label2,
	}
}

// ParseRegulations splits a comma-separated regulation string into tokens.
// An empty string (no regulation assigned) maps to ["Unspecified"].
// Tokens must be plain identifiers; anything else is a configuration error.
func ParseRegulations(s string) ([]string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return []string{RegulationUnspecified}, nil
	}

	var regs []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(trimmed, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !validRegulationToken(tok) {
			return nil, fmt.Errorf("malformed regulation token %q in %q", tok, s)
		}
		if !seen[tok] {
			seen[tok] = true
			regs = append(regs, tok)
		}
	}

	if len(regs) == 0 {
		return []string{RegulationUnspecified}, nil
	}
	return regs, nil
}

func validRegulationToken(tok string) bool {
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
