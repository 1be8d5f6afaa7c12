package fx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Static serves quotes from a fixed in-memory table. Offline runs and
// tests use it directly; the live stream can also write into one.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]float64
}

// NewStatic creates a provider over a currency → USD-per-unit table
func NewStatic(quotes map[string]float64) *Static {
	q := make(map[string]float64, len(quotes))
	for ccy, rate := range quotes {
		q[strings.ToUpper(ccy)] = rate
	}
	return &Static{quotes: q}
}

// Quote returns the stored USD rate for one unit of ccy
func (s *Static) Quote(_ context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "USD" {
		return 1.0, nil
	}

	s.mu.RLock()
	rate, ok := s.quotes[ccy]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("no quote for %s", ccy)
	}
	return rate, nil
}

// Set updates one quote in place
func (s *Static) Set(ccy string, rate float64) {
	s.mu.Lock()
	s.quotes[strings.ToUpper(ccy)] = rate
	s.mu.Unlock()
}

// Currencies returns the quoted currencies in sorted order
func (s *Static) Currencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ccys := make([]string, 0, len(s.quotes))
	for ccy := range s.quotes {
		ccys = append(ccys, ccy)
	}
	sort.Strings(ccys)
	return ccys
}
