package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/atlas/pkg/config"
)

func TestFallbackUsesFirstHealthySource(t *testing.T) {
	first := NewStatic(map[string]float64{"EUR": 1.10})
	second := NewStatic(map[string]float64{"EUR": 9.99})

	f := NewFallback(testLogger(), first, second)

	rate, err := f.Quote(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.10, rate)
}

func TestFallbackFailsOver(t *testing.T) {
	// 첫 소스는 EUR을 모르고 두 번째는 안다
	first := NewStatic(map[string]float64{"KRW": 0.00072})
	second := NewStatic(map[string]float64{"EUR": 1.08})

	f := NewFallback(testLogger(), first, second)

	rate, err := f.Quote(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.08, rate)
}

func TestFallbackAllSourcesFail(t *testing.T) {
	f := NewFallback(testLogger(), NewStatic(nil), NewStatic(nil))

	_, err := f.Quote(context.Background(), "EUR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EUR")
}

func TestFallbackUSDWithoutSources(t *testing.T) {
	f := NewFallback(testLogger())

	rate, err := f.Quote(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	_, err = f.Quote(context.Background(), "EUR")
	assert.Error(t, err)
}

func TestNewBuildsProviderFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"EUR":0.925926}}`))
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.FX.BaseURL = srv.URL

	p := New(cfg, testHTTPClient(), nil, testLogger())

	rate, err := p.Quote(context.Background(), "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 1.08, rate, 1e-6)
}
