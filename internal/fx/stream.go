package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/redis"
)

const (
	streamHandshakeTimeout = 10 * time.Second
	streamPingInterval     = 30 * time.Second
	reconnectInitialDelay  = 1 * time.Second
	reconnectMaxDelay      = 30 * time.Second
	maxReconnectAttempts   = 10
)

// Stream consumes a live FX quote feed over websocket and keeps the
// shared Redis quote cache warm, so scheduled runs skip the HTTP
// sources while the feed is up.
type Stream struct {
	url    string
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	subscriptions map[string]bool
	subMu         sync.RWMutex

	onQuote func(ccy string, rate float64)
	onError func(error)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStream creates a live feed client writing into the given cache
func NewStream(url string, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Stream {
	if ttl <= 0 {
		ttl = redis.TTLShort
	}
	return &Stream{
		url:           url,
		cache:         cache,
		ttl:           ttl,
		logger:        log,
		subscriptions: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Callback setters
func (s *Stream) OnQuote(fn func(ccy string, rate float64)) { s.onQuote = fn }
func (s *Stream) OnError(fn func(error))                    { s.onError = fn }

// Connect establishes the websocket connection and starts the read
// and ping loops
func (s *Stream) Connect(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	s.logger.WithField("url", s.url).Info("FX 스트림 연결됨")
	return nil
}

func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: streamHandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.conn = conn
	s.connected = true
	return nil
}

// Disconnect closes the connection and waits for the loops to stop
func (s *Stream) Disconnect() error {
	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.connected = false
	}
	s.connMu.Unlock()

	s.wg.Wait()

	s.logger.Info("FX 스트림 연결 해제됨")
	return nil
}

// IsConnected returns connection status
func (s *Stream) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connected
}

// subscribeMessage is the feed's subscription request
type subscribeMessage struct {
	Op         string   `json:"op"`
	Currencies []string `json:"currencies"`
}

// Subscribe registers currencies with the feed
func (s *Stream) Subscribe(currencies ...string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	fresh := make([]string, 0, len(currencies))
	for _, ccy := range currencies {
		ccy = strings.ToUpper(strings.TrimSpace(ccy))
		if ccy == "" || ccy == "USD" || s.subscriptions[ccy] {
			continue
		}
		fresh = append(fresh, ccy)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.send(subscribeMessage{Op: "subscribe", Currencies: fresh}); err != nil {
		return fmt.Errorf("subscribe %v: %w", fresh, err)
	}

	for _, ccy := range fresh {
		s.subscriptions[ccy] = true
	}
	s.logger.WithField("currencies", fresh).Debug("FX 스트림 구독")
	return nil
}

// Unsubscribe removes currency subscriptions
func (s *Stream) Unsubscribe(currencies ...string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	removed := make([]string, 0, len(currencies))
	for _, ccy := range currencies {
		ccy = strings.ToUpper(strings.TrimSpace(ccy))
		if !s.subscriptions[ccy] {
			continue
		}
		removed = append(removed, ccy)
	}
	if len(removed) == 0 {
		return nil
	}

	if err := s.send(subscribeMessage{Op: "unsubscribe", Currencies: removed}); err != nil {
		return fmt.Errorf("unsubscribe %v: %w", removed, err)
	}

	for _, ccy := range removed {
		delete(s.subscriptions, ccy)
	}
	return nil
}

// Subscriptions returns the currently subscribed currencies
func (s *Stream) Subscriptions() []string {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	ccys := make([]string, 0, len(s.subscriptions))
	for ccy := range s.subscriptions {
		ccys = append(ccys, ccy)
	}
	return ccys
}

func (s *Stream) send(msg interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	return s.conn.WriteJSON(msg)
}

// readLoop handles incoming messages
func (s *Stream) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if s.onError != nil {
				s.onError(fmt.Errorf("read error: %w", err))
			}
			s.handleDisconnect()
			return
		}

		s.handleMessage(message)
	}
}

// pingLoop keeps the connection alive
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.connMu.Unlock()
					if s.onError != nil {
						s.onError(fmt.Errorf("ping error: %w", err))
					}
					s.handleDisconnect()
					return
				}
			}
			s.connMu.Unlock()
		}
	}
}

// streamQuote is one feed tick
type streamQuote struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"` // 1단위당 USD
}

// handleMessage parses a tick and pushes it into the cache
func (s *Stream) handleMessage(data []byte) {
	var q streamQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return // 구독 확인 등 틱이 아닌 메시지
	}

	ccy := strings.ToUpper(strings.TrimSpace(q.Currency))
	if !ccyCodeRe.MatchString(ccy) || q.Rate <= 0 {
		return
	}

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.cache.Set(ctx, redis.FxQuoteKey(ccy), q.Rate, s.ttl); err != nil {
			s.logger.WithError(err).WithField("currency", ccy).Warn("환율 캐시 갱신 실패")
		}
		cancel()
	}

	if s.onQuote != nil {
		s.onQuote(ccy, q.Rate)
	}
}

func (s *Stream) handleDisconnect() {
	s.connMu.Lock()
	s.connected = false
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// Reconnect re-establishes the connection with exponential backoff and
// replays the current subscriptions
func (s *Stream) Reconnect(ctx context.Context) error {
	delay := reconnectInitialDelay

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		s.logger.WithField("attempt", attempt).Info("FX 스트림 재연결 시도")

		if err := s.connect(ctx); err != nil {
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		s.wg.Add(1)
		go s.readLoop()

		s.subMu.RLock()
		ccys := make([]string, 0, len(s.subscriptions))
		for ccy := range s.subscriptions {
			ccys = append(ccys, ccy)
		}
		s.subMu.RUnlock()

		if len(ccys) > 0 {
			if err := s.send(subscribeMessage{Op: "subscribe", Currencies: ccys}); err != nil {
				s.logger.WithError(err).Warn("재연결 후 재구독 실패")
			}
		}

		s.logger.Info("FX 스트림 재연결됨")
		return nil
	}

	return fmt.Errorf("reconnect failed after %d attempts", maxReconnectAttempts)
}
