// Package report renders and persists margin results: CSV reports in
// the standard interchange layout and a Postgres repository for runs.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/simm"
	"github.com/wonny/atlas/pkg/logger"
)

// Writer renders margin outcomes as CSV reports. Rows whose margin is
// below the output threshold are suppressed, except portfolio totals.
type Writer struct {
	threshold float64
	logger    *logger.Logger
}

// NewWriter creates a report writer with the given output threshold
func NewWriter(threshold float64, log *logger.Logger) *Writer {
	return &Writer{threshold: math.Abs(threshold), logger: log}
}

func marginColumns() []string {
	return []string{
		"ProductClass", "RiskClass", "MarginType", "Bucket",
		"SimmSide", "Regulation", "InitialMargin", "Currency", "CalculationCurrency",
	}
}

// hasNettingSetDetails reports whether any published netting set uses
// the optional discriminator fields, which widens the key columns
func hasNettingSetDetails(outcome *simm.Outcome) bool {
	for _, side := range contracts.Sides() {
		for ns := range outcome.Final[side] {
			if ns.HasOptionalFields() {
				return true
			}
		}
	}
	return false
}

// WriteFull writes every computed (side, portfolio, regulation) cell
func (w *Writer) WriteFull(out io.Writer, outcome *simm.Outcome) error {
	w.logger.Info("전체 마진 리포트 작성")

	withDetails := hasNettingSetDetails(outcome)
	cw := csv.NewWriter(out)
	if err := cw.Write(append(contracts.NettingSetFieldNames(withDetails), marginColumns()...)); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	rows := 0
	for _, side := range contracts.Sides() {
		for _, ns := range sortedKeys(outcome.Results[side]) {
			byReg := outcome.Results[side][ns]
			for _, reg := range sortedRegs(byReg) {
				n, _, err := w.writeResults(cw, withDetails, side, ns, reg, byReg[reg])
				if err != nil {
					return err
				}
				rows += n
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	w.logger.WithField("rows", rows).Info("✅ 전체 마진 리포트 작성 완료")
	return nil
}

// WriteFinal writes the winning cell of every portfolio plus one
// all-portfolios summary row per side
func (w *Writer) WriteFinal(out io.Writer, outcome *simm.Outcome) error {
	w.logger.Info("최종 마진 리포트 작성")

	withDetails := hasNettingSetDetails(outcome)
	cw := csv.NewWriter(out)
	if err := cw.Write(append(contracts.NettingSetFieldNames(withDetails), marginColumns()...)); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	rows := 0
	for _, side := range contracts.Sides() {
		var sum float64
		resultCcy, calcCcy := "", ""
		winningRegs := make(map[string]bool)

		for _, ns := range outcome.NettingSets(side) {
			fr, ok := outcome.FinalFor(side, ns)
			if !ok {
				continue
			}
			winningRegs[fr.Regulation] = true
			resultCcy = fr.Results.Currency()
			calcCcy = fr.Results.CalculationCurrency()

			n, total, err := w.writeResults(cw, withDetails, side, ns, fr.Regulation, fr.Results)
			if err != nil {
				return err
			}
			rows += n
			sum += total
		}

		// 포트폴리오 전체 합계 행, 승리 규제가 하나로 일치할 때만 표기
		finalReg := ""
		if len(winningRegs) == 1 {
			for reg := range winningRegs {
				finalReg = reg
			}
		}

		row := allKeyValues(withDetails)
		row = append(row, "All", "All", "All", "All",
			string(side), finalReg, formatMargin(sum), resultCcy, calcCcy)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	w.logger.WithField("rows", rows).Info("✅ 최종 마진 리포트 작성 완료")
	return nil
}

// writeResults writes one cell's rows and returns the row count and
// the cell's portfolio total
func (w *Writer) writeResults(cw *csv.Writer, withDetails bool, side contracts.SimmSide,
	ns contracts.NettingSetDetails, regulation string, res *simm.Results) (int, float64, error) {

	rows := 0
	var total float64
	for _, e := range res.Entries() {
		portfolioTotal := e.Key.ProductClass == contracts.ProductClassAll &&
			e.Key.RiskClass == contracts.RiskClassAll &&
			e.Key.MarginType == contracts.MarginTypeAll
		if portfolioTotal {
			total = e.Margin
		}

		if math.Abs(e.Margin) < w.threshold && !portfolioTotal {
			continue
		}

		row := ns.FieldValues(withDetails)
		row = append(row,
			e.Key.ProductClass.String(), string(e.Key.RiskClass), string(e.Key.MarginType), e.Key.Bucket,
			string(side), regulation, formatMargin(e.Margin),
			res.Currency(), res.CalculationCurrency())
		if err := cw.Write(row); err != nil {
			return rows, total, fmt.Errorf("write result row: %w", err)
		}
		rows++
	}
	return rows, total, nil
}

// WriteData writes the netted sensitivity records that fed a run.
// Records with negligible USD amounts are dropped.
func (w *Writer) WriteData(out io.Writer, records []contracts.CrifRecord) error {
	w.logger.Info("CRIF 데이터 리포트 작성")

	withDetails := false
	hasRegulations := false
	for _, rec := range records {
		if rec.NettingSet.HasOptionalFields() {
			withDetails = true
		}
		if rec.CollectRegulations != "" || rec.PostRegulations != "" {
			hasRegulations = true
		}
	}

	header := append(contracts.NettingSetFieldNames(withDetails),
		"RiskType", "ProductClass", "Bucket", "Qualifier", "Label1", "Label2", "AmountUSD", "IMModel")
	if hasRegulations {
		header = append(header, "collect_regulations", "post_regulations")
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write data header: %w", err)
	}

	rows := 0
	for _, rec := range records {
		if math.Abs(rec.AmountUSD) < 1e-12 {
			continue
		}

		row := rec.NettingSet.FieldValues(withDetails)
		row = append(row,
			rec.RiskType.String(), rec.ProductClass.String(), rec.Bucket,
			rec.Qualifier, rec.Label1, rec.Label2,
			formatMargin(rec.AmountUSD), rec.IMModel)
		if hasRegulations {
			row = append(row, rec.CollectRegulations, rec.PostRegulations)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write data row: %w", err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush data report: %w", err)
	}

	w.logger.WithField("rows", rows).Info("✅ CRIF 데이터 리포트 작성 완료")
	return nil
}

// allKeyValues returns the netting set key columns of a summary row
func allKeyValues(withDetails bool) []string {
	n := len(contracts.NettingSetFieldNames(withDetails))
	row := make([]string, n)
	for i := range row {
		row[i] = "All"
	}
	return row
}

// formatMargin renders margins with two decimal places
func formatMargin(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sortedKeys(m map[contracts.NettingSetDetails]map[string]*simm.Results) []contracts.NettingSetDetails {
	keys := make([]contracts.NettingSetDetails, 0, len(m))
	for ns := range m {
		keys = append(keys, ns)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
