package simm

import (
	"fmt"
	"sort"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/pkg/logger"
)

// Split is the regulation split of one CRIF snapshot: a netted record
// set per (side, netting set, regulation) cell, the trade IDs behind
// each cell, and every netting set seen in the raw input.
// ⭐ SSOT: 규제 분리 결과는 이 구조체로만 전달
type Split struct {
	sets     map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]*crif.Set
	tradeIDs map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]map[string]bool

	// CFTC에만 배정된 레코드: SEC 셀이 공존하면 그쪽에도 합산된다
	cftcOnly map[contracts.SimmSide]map[contracts.NettingSetDetails][]contracts.CrifRecord

	// 입력에 등장한 모든 넷팅셋 (Schedule 전용 포함)
	inputNettingSets map[contracts.NettingSetDetails]bool

	recordCount     int
	scheduleSkipped int
}

func newSplit() *Split {
	sp := &Split{
		sets:             make(map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]*crif.Set),
		tradeIDs:         make(map[contracts.SimmSide]map[contracts.NettingSetDetails]map[string]map[string]bool),
		cftcOnly:         make(map[contracts.SimmSide]map[contracts.NettingSetDetails][]contracts.CrifRecord),
		inputNettingSets: make(map[contracts.NettingSetDetails]bool),
	}
	for _, side := range contracts.Sides() {
		sp.sets[side] = make(map[contracts.NettingSetDetails]map[string]*crif.Set)
		sp.tradeIDs[side] = make(map[contracts.NettingSetDetails]map[string]map[string]bool)
		sp.cftcOnly[side] = make(map[contracts.NettingSetDetails][]contracts.CrifRecord)
	}
	return sp
}

// SplitRegulations distributes net sensitivity records over the
// side × netting set × regulation grid.
//
// Under enforcement the Call side follows each record's collect
// regulations and the Post side its post regulations; a record with no
// regulations lands under Unspecified. Without enforcement every
// record lands under Unspecified on both sides. Schedule records never
// participate.
func SplitRegulations(records []contracts.CrifRecord, enforce bool, log *logger.Logger) (*Split, error) {
	sp := newSplit()

	// Schedule 제외 + 넷팅셋별 규제 공란 여부는 SIMM 레코드만으로 판단
	collectEmpty := make(map[contracts.NettingSetDetails]bool)
	postEmpty := make(map[contracts.NettingSetDetails]bool)
	filtered := make([]contracts.CrifRecord, 0, len(records))
	for _, r := range records {
		sp.inputNettingSets[r.NettingSet] = true
		if r.IsSchedule() {
			sp.scheduleSkipped++
			continue
		}
		if seen, ok := collectEmpty[r.NettingSet]; !ok {
			collectEmpty[r.NettingSet] = r.CollectRegulations == ""
		} else if seen && r.CollectRegulations != "" {
			collectEmpty[r.NettingSet] = false
		}
		if seen, ok := postEmpty[r.NettingSet]; !ok {
			postEmpty[r.NettingSet] = r.PostRegulations == ""
		} else if seen && r.PostRegulations != "" {
			postEmpty[r.NettingSet] = false
		}
		filtered = append(filtered, r)
	}
	sp.recordCount = len(filtered)

	if len(filtered) == 0 {
		log.WithField("schedule_skipped", sp.scheduleSkipped).Warn("분리할 SIMM 레코드 없음")
		return sp, nil
	}

	for _, r := range filtered {
		neverSpecified := collectEmpty[r.NettingSet] && postEmpty[r.NettingSet]
		for _, side := range contracts.Sides() {
			if err := sp.place(r, side, enforce, neverSpecified); err != nil {
				return nil, err
			}
		}
	}

	sp.mergeCFTCIntoSEC(log)
	sp.dropShadowedUnspecified()

	log.WithFields(map[string]interface{}{
		"records":          sp.recordCount,
		"schedule_skipped": sp.scheduleSkipped,
		"cells":            sp.CellCount(),
		"enforce":          enforce,
	}).Info("✅ 규제 분리 완료")

	return sp, nil
}

// place routes one record into the cells of one side.
func (sp *Split) place(r contracts.CrifRecord, side contracts.SimmSide, enforce, regsNeverSpecified bool) error {
	var regsString string
	if enforce {
		if side == contracts.SideCall {
			regsString = r.CollectRegulations
		} else {
			regsString = r.PostRegulations
		}
	}
	regs, err := contracts.ParseRegulations(regsString)
	if err != nil {
		return fmt.Errorf("trade %q: %w", r.TradeID, err)
	}

	// 분리 이후에는 규제 문자열 불필요
	rec := r
	rec.CollectRegulations = ""
	rec.PostRegulations = ""

	hasCFTC, hasSEC := false, false
	for _, reg := range regs {
		if reg == contracts.RegulationExcluded {
			continue
		}
		// 명시 규제가 하나라도 있는 넷팅셋에서는 Unspecified 레코드 제외
		if reg == contracts.RegulationUnspecified && enforce && !regsNeverSpecified {
			continue
		}
		switch reg {
		case contracts.RegulationCFTC:
			hasCFTC = true
		case contracts.RegulationSEC:
			hasSEC = true
		}
		if !rec.IsSimmParameter() {
			sp.trackTradeID(side, rec.NettingSet, reg, rec.TradeID)
		}
		sp.cell(side, rec.NettingSet, reg).Add(rec)
	}
	if hasCFTC && !hasSEC {
		sp.cftcOnly[side][rec.NettingSet] = append(sp.cftcOnly[side][rec.NettingSet], rec)
	}
	return nil
}

func (sp *Split) cell(side contracts.SimmSide, ns contracts.NettingSetDetails, reg string) *crif.Set {
	byReg := sp.sets[side][ns]
	if byReg == nil {
		byReg = make(map[string]*crif.Set)
		sp.sets[side][ns] = byReg
	}
	set := byReg[reg]
	if set == nil {
		set = crif.NewSet()
		byReg[reg] = set
	}
	return set
}

func (sp *Split) trackTradeID(side contracts.SimmSide, ns contracts.NettingSetDetails, reg, tradeID string) {
	byReg := sp.tradeIDs[side][ns]
	if byReg == nil {
		byReg = make(map[string]map[string]bool)
		sp.tradeIDs[side][ns] = byReg
	}
	ids := byReg[reg]
	if ids == nil {
		ids = make(map[string]bool)
		byReg[reg] = ids
	}
	ids[tradeID] = true
}

// mergeCFTCIntoSEC nets the CFTC-only records into the SEC cell of the
// same side and netting set so the SEC margin covers the union of both
// regimes. Records already routed to SEC are not added twice, and
// trade IDs stay with their original cell.
func (sp *Split) mergeCFTCIntoSEC(log *logger.Logger) {
	for _, side := range contracts.Sides() {
		for ns, byReg := range sp.sets[side] {
			if _, ok := byReg[contracts.RegulationCFTC]; !ok {
				continue
			}
			sec, ok := byReg[contracts.RegulationSEC]
			if !ok {
				continue
			}
			extra := sp.cftcOnly[side][ns]
			if len(extra) == 0 {
				continue
			}
			sec.AddAll(extra)
			log.WithFields(map[string]interface{}{
				"side":        side,
				"netting_set": ns.String(),
				"merged":      len(extra),
			}).Debug("CFTC 전용 레코드를 SEC 셀에 합산")
		}
	}
}

// dropShadowedUnspecified removes Unspecified cells from netting sets
// that also carry explicitly regulated cells.
func (sp *Split) dropShadowedUnspecified() {
	for _, side := range contracts.Sides() {
		for ns, byReg := range sp.sets[side] {
			if len(byReg) <= 1 {
				continue
			}
			if _, ok := byReg[contracts.RegulationUnspecified]; ok {
				delete(byReg, contracts.RegulationUnspecified)
				delete(sp.tradeIDs[side][ns], contracts.RegulationUnspecified)
			}
		}
	}
}

// Empty reports whether the split produced no cells at all.
func (sp *Split) Empty() bool {
	return sp.CellCount() == 0
}

// CellCount counts the (side, netting set, regulation) cells.
func (sp *Split) CellCount() int {
	n := 0
	for _, side := range contracts.Sides() {
		for _, byReg := range sp.sets[side] {
			n += len(byReg)
		}
	}
	return n
}

// RecordCount returns the number of SIMM records that entered the split.
func (sp *Split) RecordCount() int { return sp.recordCount }

// ScheduleSkipped returns the number of Schedule records dropped up front.
func (sp *Split) ScheduleSkipped() int { return sp.scheduleSkipped }

// NettingSets returns the netting sets holding cells on one side, sorted.
func (sp *Split) NettingSets(side contracts.SimmSide) []contracts.NettingSetDetails {
	out := make([]contracts.NettingSetDetails, 0, len(sp.sets[side]))
	for ns := range sp.sets[side] {
		out = append(out, ns)
	}
	sortNettingSets(out)
	return out
}

// InputNettingSets returns every netting set seen in the raw input,
// Schedule-only ones included, sorted.
func (sp *Split) InputNettingSets() []contracts.NettingSetDetails {
	out := make([]contracts.NettingSetDetails, 0, len(sp.inputNettingSets))
	for ns := range sp.inputNettingSets {
		out = append(out, ns)
	}
	sortNettingSets(out)
	return out
}

// Regulations returns the regulations of one (side, netting set), sorted.
func (sp *Split) Regulations(side contracts.SimmSide, ns contracts.NettingSetDetails) []string {
	byReg := sp.sets[side][ns]
	out := make([]string, 0, len(byReg))
	for reg := range byReg {
		out = append(out, reg)
	}
	sort.Strings(out)
	return out
}

// RecordSet returns the netted record set of one cell, nil when absent.
func (sp *Split) RecordSet(side contracts.SimmSide, ns contracts.NettingSetDetails, reg string) *crif.Set {
	return sp.sets[side][ns][reg]
}

// TradeIDs returns the sorted trade IDs contributing to one cell.
func (sp *Split) TradeIDs(side contracts.SimmSide, ns contracts.NettingSetDetails, reg string) []string {
	ids := sp.tradeIDs[side][ns][reg]
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortNettingSets(sets []contracts.NettingSetDetails) {
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].String() < sets[j].String()
	})
}
