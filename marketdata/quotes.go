package marketdata

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrQuoteUnavailable = errors.New("quote unavailable")

// Quote 实时行情快照。
type Quote struct {
	Symbol    string
	Last      float64
	Bid       float64
	Ask       float64
	Volume    float64
	Timestamp time.Time
}

// QuoteSource 行情拉取接口。引擎将外部行情源视为协作方，
// 只在只读路径上同步查询；行情失败不得影响账本写入。
type QuoteSource interface {
	Quote(symbol string) (Quote, error)
}

// StaticSource 配置驱动的内存行情源，对应原型里的静态报价数组。
// 价格可在运行期覆盖（配置热更新、模拟器漂移）。
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStaticSource() *StaticSource {
	return &StaticSource{quotes: make(map[string]Quote)}
}

// SetQuote 覆盖单个符号的行情。
func (s *StaticSource) SetQuote(q Quote) {
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	s.quotes[q.Symbol] = q
	s.mu.Unlock()
}

// SetLast 仅更新最新价，买卖价按最小点差跟随。
func (s *StaticSource) SetLast(symbol string, last float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quotes[symbol]
	q.Symbol = symbol
	q.Last = last
	if q.Bid == 0 || q.Bid > last {
		q.Bid = last
	}
	if q.Ask == 0 || q.Ask < last {
		q.Ask = last
	}
	q.Timestamp = time.Now().UTC()
	s.quotes[symbol] = q
}

func (s *StaticSource) Quote(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok || q.Last <= 0 {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrQuoteUnavailable)
	}
	return q, nil
}

// Symbols 返回已有行情的符号列表。
func (s *StaticSource) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		res = append(res, sym)
	}
	return res
}
