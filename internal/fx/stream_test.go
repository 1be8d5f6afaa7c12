package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamHandleMessageParsesTicks(t *testing.T) {
	s := NewStream("ws://feed.invalid/fx", nil, 0, testLogger())

	var gotCcy string
	var gotRate float64
	s.OnQuote(func(ccy string, rate float64) {
		gotCcy = ccy
		gotRate = rate
	})

	s.handleMessage([]byte(`{"currency":"eur","rate":1.0832}`))
	assert.Equal(t, "EUR", gotCcy)
	assert.Equal(t, 1.0832, gotRate)
}

func TestStreamHandleMessageIgnoresJunk(t *testing.T) {
	s := NewStream("ws://feed.invalid/fx", nil, 0, testLogger())

	called := false
	s.OnQuote(func(string, float64) { called = true })

	// 구독 확인, 잘못된 통화, 0 이하 환율은 모두 무시
	s.handleMessage([]byte(`{"op":"subscribed","currencies":["EUR"]}`))
	s.handleMessage([]byte(`{"currency":"EURO","rate":1.08}`))
	s.handleMessage([]byte(`{"currency":"EUR","rate":0}`))
	s.handleMessage([]byte(`{"currency":"EUR","rate":-1}`))
	s.handleMessage([]byte(`not json`))

	assert.False(t, called)
}

func TestStreamSubscribeRequiresConnection(t *testing.T) {
	s := NewStream("ws://feed.invalid/fx", nil, 0, testLogger())

	err := s.Subscribe("EUR")
	assert.Error(t, err)

	// USD와 빈 문자열은 구독 대상이 아니므로 연결 없이도 성공
	assert.NoError(t, s.Subscribe("USD", ""))
	assert.Empty(t, s.Subscriptions())
	assert.False(t, s.IsConnected())
}
