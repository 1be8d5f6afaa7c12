package crif

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/pkg/logger"
)

// Loader reads CRIF records from CSV input. Column matching is
// case-insensitive and ignores underscores and spaces, so
// "AmountUSD", "amount_usd" and "Amount USD" all resolve to the same
// column. Rows that fail to parse are logged and skipped; only
// structural problems (unreadable input, missing required columns)
// abort the load.
type Loader struct {
	log *logger.Logger
}

// NewLoader creates a CSV loader.
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{log: log}
}

// Required CRIF columns. Everything else is optional.
var requiredColumns = []string{"productclass", "risktype", "amountusd"}

// column aliases, normalized form -> canonical name
var columnAliases = map[string]string{
	"portfolioid": "portfolio",
	"legalentity": "legalentityid",
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, " ", "")
	if canonical, ok := columnAliases[name]; ok {
		return canonical
	}
	return name
}

// LoadFile reads CRIF records from a CSV file on disk.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]contracts.CrifRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CRIF file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f, path)
}

// Load reads CRIF records from a CSV stream. source is used in log
// messages only.
func (l *Loader) Load(ctx context.Context, r io.Reader, source string) ([]contracts.CrifRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CRIF header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeColumn(name)] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CRIF header is missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []contracts.CrifRecord
	var skipped int
	rowNum := 1

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("read CRIF row %d: %w", rowNum, err)
		}

		record, err := l.parseRow(row, field)
		if err != nil {
			skipped++
			l.log.WithFields(map[string]interface{}{
				"source": source,
				"row":    rowNum,
			}).WithError(err).Warn("CRIF 레코드 파싱 실패, 건너뜀")
			continue
		}
		records = append(records, record)
	}

	l.log.WithFields(map[string]interface{}{
		"source":  source,
		"loaded":  len(records),
		"skipped": skipped,
	}).Info("✅ CRIF 로드 완료")

	return records, nil
}

func (l *Loader) parseRow(row []string, field func([]string, string) string) (contracts.CrifRecord, error) {
	var record contracts.CrifRecord

	pc, err := contracts.ParseProductClass(field(row, "productclass"))
	if err != nil {
		return record, err
	}
	rt, err := contracts.ParseRiskType(field(row, "risktype"))
	if err != nil {
		return record, err
	}

	amountUSDStr := field(row, "amountusd")
	if amountUSDStr == "" {
		return record, fmt.Errorf("missing AmountUSD")
	}
	amountUSD, err := strconv.ParseFloat(amountUSDStr, 64)
	if err != nil {
		return record, fmt.Errorf("parse AmountUSD %q: %w", amountUSDStr, err)
	}

	var amount float64
	if amountStr := field(row, "amount"); amountStr != "" {
		amount, err = strconv.ParseFloat(amountStr, 64)
		if err != nil {
			return record, fmt.Errorf("parse Amount %q: %w", amountStr, err)
		}
	}

	record = contracts.CrifRecord{
		NettingSet: contracts.NettingSetDetails{
			ID:                field(row, "portfolio"),
			AgreementType:     field(row, "agreementtype"),
			CallType:          field(row, "calltype"),
			InitialMarginType: field(row, "initialmargintype"),
			LegalEntityID:     field(row, "legalentityid"),
		},
		TradeID:            field(row, "tradeid"),
		IMModel:            field(row, "immodel"),
		CollectRegulations: field(row, "collectregulations"),
		PostRegulations:    field(row, "postregulations"),
		ProductClass:       pc,
		RiskType:           rt,
		Qualifier:          field(row, "qualifier"),
		Bucket:             field(row, "bucket"),
		Label1:             field(row, "label1"),
		Label2:             field(row, "label2"),
		AmountCurrency:     field(row, "amountcurrency"),
		Amount:             amount,
		AmountUSD:          amountUSD,
	}

	// Regulation strings are validated here so that garbage fails at
	// load time, not in the middle of a margin run.
	if _, err := contracts.ParseRegulations(record.CollectRegulations); err != nil {
		return record, err
	}
	if _, err := contracts.ParseRegulations(record.PostRegulations); err != nil {
		return record, err
	}

	return record, nil
}

// FileSource adapts a CSV file path to the CrifSource interface.
type FileSource struct {
	path   string
	loader *Loader
}

// NewFileSource creates a CrifSource that reads one CSV file.
func NewFileSource(path string, log *logger.Logger) *FileSource {
	return &FileSource{path: path, loader: NewLoader(log)}
}

// Load reads all records from the file.
func (f *FileSource) Load(ctx context.Context) ([]contracts.CrifRecord, error) {
	return f.loader.LoadFile(ctx, f.path)
}
