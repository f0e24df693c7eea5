package marketdata

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Kline represents OHLC data.
type Kline struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type seriesKey struct {
	symbol    string
	timeframe string
}

// KlineStore 按 (symbol, timeframe) 保存K线序列，供图表接口查询。
type KlineStore struct {
	mu     sync.RWMutex
	series map[seriesKey][]Kline
}

func NewKlineStore() *KlineStore {
	return &KlineStore{series: make(map[seriesKey][]Kline)}
}

// Append 追加一根K线；时间戳必须单调递增。
func (s *KlineStore) Append(symbol, timeframe string, k Kline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey{symbol: symbol, timeframe: timeframe}
	bars := s.series[key]
	if n := len(bars); n > 0 && !k.Timestamp.After(bars[n-1].Timestamp) {
		return fmt.Errorf("kline %s/%s: timestamp not increasing", symbol, timeframe)
	}
	s.series[key] = append(bars, k)
	return nil
}

// Series 返回 [start, end] 区间内的K线（拷贝）。
func (s *KlineStore) Series(symbol, timeframe string, start, end time.Time) []Kline {
	s.mu.RLock()
	bars := s.series[seriesKey{symbol: symbol, timeframe: timeframe}]
	s.mu.RUnlock()

	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(start) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(end) })
	if lo >= hi {
		return nil
	}
	res := make([]Kline, hi-lo)
	copy(res, bars[lo:hi])
	return res
}

// Timeframes 返回符号下已有的时间框架列表。
func (s *KlineStore) Timeframes(symbol string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0)
	for key := range s.series {
		if key.symbol == symbol {
			res = append(res, key.timeframe)
		}
	}
	sort.Strings(res)
	return res
}

// Seed 以随机游走生成 n 根演示K线，结束于当前时间。
// 对应原型前端的模拟蜡烛数据。
func (s *KlineStore) Seed(symbol, timeframe string, base float64, n int, step time.Duration, rng *rand.Rand) {
	if n <= 0 || base <= 0 || step <= 0 {
		return
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	start := time.Now().UTC().Truncate(step).Add(-time.Duration(n) * step)
	price := base
	for i := 0; i < n; i++ {
		drift := price * 0.0004 * (rng.Float64()*2 - 1)
		open := price
		close := price + drift
		high := open
		if close > high {
			high = close
		}
		high += price * 0.0002 * rng.Float64()
		low := open
		if close < low {
			low = close
		}
		low -= price * 0.0002 * rng.Float64()
		_ = s.Append(symbol, timeframe, Kline{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    50 + rng.Float64()*100,
		})
		price = close
	}
}

// StepForTimeframe 解析时间框架标签（1m/5m/15m/1h/4h/1d）。
func StepForTimeframe(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
}
