package simm

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/atlas/internal/contracts"
)

// ResultKey addresses one margin number inside a result set
type ResultKey struct {
	ProductClass contracts.ProductClass
	RiskClass    contracts.RiskClass
	MarginType   contracts.MarginType
	Bucket       string
}

// ResultEntry is one key/margin pair, used for ordered iteration
type ResultEntry struct {
	Key    ResultKey
	Margin float64
}

// Results holds the margin numbers of one (side, netting set, regulation)
// cell. The portfolio total lives under (All, All, All, "All").
// ⭐ SSOT: 마진 결과 컨테이너, 리포트와 롤업은 모두 이 타입을 통해 접근
type Results struct {
	currency     string
	calcCurrency string
	values       map[ResultKey]float64
}

// NewResults returns an empty result set in the given result currency
func NewResults(resultCcy, calcCcy string) *Results {
	return &Results{
		currency:     resultCcy,
		calcCurrency: calcCcy,
		values:       make(map[ResultKey]float64),
	}
}

// Add stores a margin number. With overwrite the value replaces any
// existing entry, otherwise it accumulates into it.
func (r *Results) Add(pc contracts.ProductClass, rc contracts.RiskClass, mt contracts.MarginType, bucket string, margin float64, overwrite bool) {
	key := ResultKey{pc, rc, mt, bucket}
	if old, ok := r.values[key]; ok && !overwrite {
		r.values[key] = old + margin
		return
	}
	r.values[key] = margin
}

// Has reports whether the entry exists
func (r *Results) Has(pc contracts.ProductClass, rc contracts.RiskClass, mt contracts.MarginType, bucket string) bool {
	_, ok := r.values[ResultKey{pc, rc, mt, bucket}]
	return ok
}

// Get returns the entry's margin, 0 when absent. Callers that must
// distinguish absence use Has first.
func (r *Results) Get(pc contracts.ProductClass, rc contracts.RiskClass, mt contracts.MarginType, bucket string) float64 {
	return r.values[ResultKey{pc, rc, mt, bucket}]
}

// Len returns the number of stored entries
func (r *Results) Len() int {
	return len(r.values)
}

// Empty reports whether no entry has been stored
func (r *Results) Empty() bool {
	return len(r.values) == 0
}

// Currency returns the currency the margin amounts are expressed in
func (r *Results) Currency() string {
	return r.currency
}

// CalculationCurrency returns the currency the sensitivities were
// interpreted against (Risk_FX self-currency exclusion)
func (r *Results) CalculationCurrency() string {
	return r.calcCurrency
}

// Convert re-expresses every margin in ccy, given the price of one unit
// of ccy in the current result currency
func (r *Results) Convert(ccy string, rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("invalid fx rate %v for conversion %s -> %s", rate, r.currency, ccy)
	}
	for k, v := range r.values {
		r.values[k] = v / rate
	}
	r.currency = ccy
	return nil
}

// Entries returns all stored entries ordered by product class, risk
// class, margin type and bucket, aggregates last
func (r *Results) Entries() []ResultEntry {
	entries := make([]ResultEntry, 0, len(r.values))
	for k, v := range r.values {
		entries = append(entries, ResultEntry{Key: k, Margin: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if pa, pb := pcRank(a.ProductClass), pcRank(b.ProductClass); pa != pb {
			return pa < pb
		}
		if ra, rb := rcRank(a.RiskClass), rcRank(b.RiskClass); ra != rb {
			return ra < rb
		}
		if ma, mb := mtRank(a.MarginType), mtRank(b.MarginType); ma != mb {
			return ma < mb
		}
		return a.Bucket < b.Bucket
	})
	return entries
}

var (
	pcRanks = buildPcRanks()
	rcRanks = buildRcRanks()
	mtRanks = buildMtRanks()
)

func buildPcRanks() map[contracts.ProductClass]int {
	m := make(map[contracts.ProductClass]int)
	for i, pc := range contracts.AllProductClasses() {
		m[pc] = i
	}
	return m
}

func buildRcRanks() map[contracts.RiskClass]int {
	m := make(map[contracts.RiskClass]int)
	for i, rc := range contracts.RiskClasses() {
		m[rc] = i
	}
	m[contracts.RiskClassAll] = len(m)
	return m
}

func buildMtRanks() map[contracts.MarginType]int {
	m := make(map[contracts.MarginType]int)
	for i, mt := range contracts.MarginTypes() {
		m[mt] = i
	}
	m[contracts.MarginTypeAll] = len(m)
	return m
}

func pcRank(pc contracts.ProductClass) int {
	if r, ok := pcRanks[pc]; ok {
		return r
	}
	return len(pcRanks)
}

func rcRank(rc contracts.RiskClass) int {
	if r, ok := rcRanks[rc]; ok {
		return r
	}
	return len(rcRanks)
}

func mtRank(mt contracts.MarginType) int {
	if r, ok := mtRanks[mt]; ok {
		return r
	}
	return len(mtRanks)
}
