// Package crif loads, nets and indexes CRIF sensitivity records.
//
// A Set is the unit the margin engine works on: one Set per
// (side, netting set, regulation) after the regulation split. Records
// are netted on insert, so a Set never holds two records with the same
// netted identity.
package crif

import (
	"sort"

	"github.com/wonny/atlas/internal/contracts"
)

type pcRtKey struct {
	pc contracts.ProductClass
	rt contracts.RiskType
}

type qualifierKey struct {
	pc        contracts.ProductClass
	rt        contracts.RiskType
	qualifier string
}

type bucketKey struct {
	pc     contracts.ProductClass
	rt     contracts.RiskType
	bucket string
}

type bucketQualifierKey struct {
	pc        contracts.ProductClass
	rt        contracts.RiskType
	bucket    string
	qualifier string
}

// Set is a netted, indexed collection of CRIF records.
// ⭐ SSOT: 레코드 인덱싱은 여기서만 수행 (마진 계산기는 Set 조회만 사용)
type Set struct {
	records []contracts.CrifRecord

	byKey             map[contracts.NettedKey]int
	byPcRt            map[pcRtKey][]int
	byQualifier       map[qualifierKey][]int
	byBucket          map[bucketKey][]int
	byBucketQualifier map[bucketQualifierKey][]int

	paramCount int
}

// NewSet returns an empty record set.
func NewSet() *Set {
	return &Set{
		byKey:             make(map[contracts.NettedKey]int),
		byPcRt:            make(map[pcRtKey][]int),
		byQualifier:       make(map[qualifierKey][]int),
		byBucket:          make(map[bucketKey][]int),
		byBucketQualifier: make(map[bucketQualifierKey][]int),
	}
}

// Add nets the record into the set. A record whose netted identity is
// already present has its amounts summed into the existing record.
// Native amounts are only summed when the amount currencies agree; the
// USD amount is always summed.
func (s *Set) Add(r contracts.CrifRecord) {
	key := r.NettedKey()
	if idx, ok := s.byKey[key]; ok {
		existing := &s.records[idx]
		if existing.AmountCurrency == r.AmountCurrency {
			existing.Amount += r.Amount
		}
		existing.AmountUSD += r.AmountUSD
		return
	}

	idx := len(s.records)
	s.records = append(s.records, r)
	s.byKey[key] = idx

	if r.IsSimmParameter() {
		s.paramCount++
	}

	pr := pcRtKey{pc: r.ProductClass, rt: r.RiskType}
	s.byPcRt[pr] = append(s.byPcRt[pr], idx)

	qk := qualifierKey{pc: r.ProductClass, rt: r.RiskType, qualifier: r.Qualifier}
	s.byQualifier[qk] = append(s.byQualifier[qk], idx)

	bk := bucketKey{pc: r.ProductClass, rt: r.RiskType, bucket: r.Bucket}
	s.byBucket[bk] = append(s.byBucket[bk], idx)

	bq := bucketQualifierKey{pc: r.ProductClass, rt: r.RiskType, bucket: r.Bucket, qualifier: r.Qualifier}
	s.byBucketQualifier[bq] = append(s.byBucketQualifier[bq], idx)
}

// AddAll nets every record in the slice into the set.
func (s *Set) AddAll(records []contracts.CrifRecord) {
	for _, r := range records {
		s.Add(r)
	}
}

// Len returns the number of netted records (parameter rows included).
func (s *Set) Len() int {
	return len(s.records)
}

// Empty reports whether the set holds no records at all.
func (s *Set) Empty() bool {
	return len(s.records) == 0
}

// HasCrifRecords reports whether at least one regular (non-parameter)
// sensitivity record is present.
func (s *Set) HasCrifRecords() bool {
	return len(s.records) > s.paramCount
}

// Contains reports whether a record with the given netted identity
// is already in the set.
func (s *Set) Contains(key contracts.NettedKey) bool {
	_, ok := s.byKey[key]
	return ok
}

// Records returns all netted records in first-insertion order.
// The returned slice is shared; callers must not mutate it.
func (s *Set) Records() []contracts.CrifRecord {
	return s.records
}

// SimmParameters returns the add-on parameter rows in insertion order.
func (s *Set) SimmParameters() []contracts.CrifRecord {
	if s.paramCount == 0 {
		return nil
	}
	params := make([]contracts.CrifRecord, 0, s.paramCount)
	for _, r := range s.records {
		if r.IsSimmParameter() {
			params = append(params, r)
		}
	}
	return params
}

// ProductClasses returns the distinct product classes present,
// in canonical order.
func (s *Set) ProductClasses() []contracts.ProductClass {
	present := make(map[contracts.ProductClass]bool)
	for _, r := range s.records {
		present[r.ProductClass] = true
	}
	var out []contracts.ProductClass
	for _, pc := range contracts.AllProductClasses() {
		if present[pc] {
			out = append(out, pc)
		}
	}
	return out
}

// HasRiskType reports whether any record of the given product class
// and risk type is present.
func (s *Set) HasRiskType(pc contracts.ProductClass, rt contracts.RiskType) bool {
	return len(s.byPcRt[pcRtKey{pc: pc, rt: rt}]) > 0
}

// RecordsFor returns the records for a product class and risk type.
func (s *Set) RecordsFor(pc contracts.ProductClass, rt contracts.RiskType) []contracts.CrifRecord {
	return s.collect(s.byPcRt[pcRtKey{pc: pc, rt: rt}])
}

// RecordsForQualifier returns the records for a product class, risk
// type and qualifier.
func (s *Set) RecordsForQualifier(pc contracts.ProductClass, rt contracts.RiskType, qualifier string) []contracts.CrifRecord {
	return s.collect(s.byQualifier[qualifierKey{pc: pc, rt: rt, qualifier: qualifier}])
}

// RecordsForBucket returns the records for a product class, risk type
// and bucket.
func (s *Set) RecordsForBucket(pc contracts.ProductClass, rt contracts.RiskType, bucket string) []contracts.CrifRecord {
	return s.collect(s.byBucket[bucketKey{pc: pc, rt: rt, bucket: bucket}])
}

// RecordsForBucketQualifier returns the records for a product class,
// risk type, bucket and qualifier.
func (s *Set) RecordsForBucketQualifier(pc contracts.ProductClass, rt contracts.RiskType, bucket, qualifier string) []contracts.CrifRecord {
	return s.collect(s.byBucketQualifier[bucketQualifierKey{pc: pc, rt: rt, bucket: bucket, qualifier: qualifier}])
}

// Qualifiers returns the sorted distinct qualifiers for a product
// class and risk type.
func (s *Set) Qualifiers(pc contracts.ProductClass, rt contracts.RiskType) []string {
	return s.distinct(s.byPcRt[pcRtKey{pc: pc, rt: rt}], func(r contracts.CrifRecord) string { return r.Qualifier })
}

// Buckets returns the sorted distinct buckets for a product class and
// risk type.
func (s *Set) Buckets(pc contracts.ProductClass, rt contracts.RiskType) []string {
	return s.distinct(s.byPcRt[pcRtKey{pc: pc, rt: rt}], func(r contracts.CrifRecord) string { return r.Bucket })
}

// QualifiersForBucket returns the sorted distinct qualifiers within
// one bucket of a product class and risk type.
func (s *Set) QualifiersForBucket(pc contracts.ProductClass, rt contracts.RiskType, bucket string) []string {
	return s.distinct(s.byBucket[bucketKey{pc: pc, rt: rt, bucket: bucket}], func(r contracts.CrifRecord) string { return r.Qualifier })
}

func (s *Set) collect(indices []int) []contracts.CrifRecord {
	if len(indices) == 0 {
		return nil
	}
	out := make([]contracts.CrifRecord, len(indices))
	for i, idx := range indices {
		out[i] = s.records[idx]
	}
	return out
}

func (s *Set) distinct(indices []int, field func(contracts.CrifRecord) string) []string {
	if len(indices) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, idx := range indices {
		v := field(s.records[idx])
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
