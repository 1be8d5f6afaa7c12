package fx

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/atlas/pkg/httputil"
	"github.com/wonny/atlas/pkg/logger"
)

// Client fetches quotes from a JSON FX rate API.
// ⭐ SSOT: 환율 JSON API 호출은 이 클라이언트에서만
type Client struct {
	baseURL    string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a new FX rate API client
func NewClient(baseURL string, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     log,
	}
}

// rateTable is the USD-base response of the rate API.
// rates[ccy]는 1 USD당 ccy 단위이므로 엔진 방향(1 ccy당 USD)으로 뒤집는다.
type rateTable struct {
	Result   string             `json:"result"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// Quote returns the USD price of one unit of ccy
func (c *Client) Quote(ctx context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "USD" {
		return 1.0, nil
	}

	url := fmt.Sprintf("%s/latest/USD", c.baseURL)

	var table rateTable
	if err := c.httpClient.GetJSON(ctx, url, &table); err != nil {
		return 0, fmt.Errorf("fx quote request failed: %w", err)
	}

	if table.Result != "" && table.Result != "success" {
		return 0, fmt.Errorf("fx api returned result %q", table.Result)
	}
	if table.BaseCode != "" && table.BaseCode != "USD" {
		return 0, fmt.Errorf("fx api returned base %q, want USD", table.BaseCode)
	}

	perUSD, ok := table.Rates[ccy]
	if !ok || perUSD <= 0 {
		return 0, fmt.Errorf("no usable quote for %s", ccy)
	}

	rate := 1.0 / perUSD
	c.logger.WithFields(map[string]interface{}{
		"currency": ccy,
		"rate":     rate,
	}).Debug("Fetched FX quote")
	return rate, nil
}
