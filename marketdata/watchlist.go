package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrWatchlistItemNotFound = errors.New("watchlist item not found")

// Item 自选列表条目。
type Item struct {
	ID       int64
	Symbol   string
	Exchange string
	Account  string
}

// ItemView 条目加实时行情；行情缺失时价格字段为零值。
type ItemView struct {
	Item
	Last   float64
	Bid    float64
	Ask    float64
	Volume float64
}

// Watchlist 自选列表。行情在读取时按需补全，不落地。
type Watchlist struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Item
	quotes QuoteSource
}

func NewWatchlist(quotes QuoteSource) *Watchlist {
	return &Watchlist{
		items:  make(map[int64]Item),
		quotes: quotes,
	}
}

// Add 追加条目并返回分配的标识。
func (w *Watchlist) Add(symbol, exchange, account string) (Item, error) {
	if symbol == "" || exchange == "" {
		return Item{}, fmt.Errorf("watchlist add: symbol and exchange are required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	it := Item{ID: w.nextID, Symbol: symbol, Exchange: exchange, Account: account}
	w.items[it.ID] = it
	return it, nil
}

// Remove 删除条目。
func (w *Watchlist) Remove(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.items[id]; !ok {
		return fmt.Errorf("watchlist remove %d: %w", id, ErrWatchlistItemNotFound)
	}
	delete(w.items, id)
	return nil
}

// List 返回带行情的条目列表，按标识排序。
func (w *Watchlist) List() []ItemView {
	w.mu.RLock()
	items := make([]Item, 0, len(w.items))
	for _, it := range w.items {
		items = append(items, it)
	}
	w.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	res := make([]ItemView, 0, len(items))
	for _, it := range items {
		view := ItemView{Item: it}
		if w.quotes != nil {
			if q, err := w.quotes.Quote(it.Symbol); err == nil {
				view.Last = q.Last
				view.Bid = q.Bid
				view.Ask = q.Ask
				view.Volume = q.Volume
			}
		}
		res = append(res, view)
	}
	return res
}
