package fx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/atlas/pkg/httputil"
	"github.com/wonny/atlas/pkg/logger"
)

// Scraper reads quotes off an HTML quote-board page. It is the fallback
// source when the JSON API is down.
type Scraper struct {
	boardURL   string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewScraper creates a quote-board scraper
func NewScraper(boardURL string, httpClient *httputil.Client, log *logger.Logger) *Scraper {
	return &Scraper{
		boardURL:   boardURL,
		httpClient: httpClient,
		logger:     log,
	}
}

// Quote returns the USD price of one unit of ccy from the board
func (s *Scraper) Quote(ctx context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "USD" {
		return 1.0, nil
	}

	resp, err := s.httpClient.Get(ctx, s.boardURL)
	if err != nil {
		return 0, fmt.Errorf("quote board request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	quotes, err := parseQuoteBoard(string(body))
	if err != nil {
		return 0, fmt.Errorf("parse quote board: %w", err)
	}

	rate, ok := quotes[ccy]
	if !ok {
		return 0, fmt.Errorf("currency %s not on quote board", ccy)
	}

	s.logger.WithFields(map[string]interface{}{
		"currency": ccy,
		"rate":     rate,
	}).Debug("Fetched FX quote from board")
	return rate, nil
}

var ccyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// parseQuoteBoard extracts USD rates from the board table.
// 행 구조: 통화코드 | 통화명 | 1단위당 USD
func parseQuoteBoard(html string) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.quote_board")
	if table.Length() == 0 {
		return nil, fmt.Errorf("quote board table not found")
	}

	quotes := make(map[string]float64)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		code := strings.TrimSpace(cells.Eq(0).Text())
		if !ccyCodeRe.MatchString(code) {
			return
		}

		rateText := strings.ReplaceAll(strings.TrimSpace(cells.Eq(2).Text()), ",", "")
		rate, err := strconv.ParseFloat(rateText, 64)
		if err != nil || rate <= 0 {
			return
		}

		quotes[code] = rate
	})

	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quotes parsed from board")
	}
	return quotes, nil
}
