package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/pkg/logger"
)

// FxHandler handles FX quote API endpoints
// ⭐ SSOT: 환율 API 핸들러는 이 구조체에서만
type FxHandler struct {
	provider contracts.FxProvider
	logger   *logger.Logger
}

// NewFxHandler creates a new FX handler
func NewFxHandler(provider contracts.FxProvider, log *logger.Logger) *FxHandler {
	return &FxHandler{
		provider: provider,
		logger:   log,
	}
}

// QuoteResponse represents a USD spot quote
type QuoteResponse struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"` // units of currency per 1 USD
	AsOf     string  `json:"asOf"`
}

// GetQuote returns the USD spot rate for a currency
// GET /api/v1/fx/{ccy}
func (h *FxHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ccy := strings.ToUpper(mux.Vars(r)["ccy"])

	if len(ccy) != 3 {
		respondError(w, http.StatusBadRequest, "Currency must be a 3-letter code")
		return
	}

	rate, err := h.provider.Quote(ctx, ccy)
	if err != nil {
		h.logger.WithError(err).WithField("ccy", ccy).Error("Failed to fetch FX quote")
		respondError(w, http.StatusBadGateway, "Failed to fetch FX quote")
		return
	}

	respondJSON(w, http.StatusOK, QuoteResponse{
		Currency: ccy,
		Rate:     rate,
		AsOf:     time.Now().Format(time.RFC3339),
	})
}
