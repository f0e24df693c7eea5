package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"trading-desk-go/instrument"
	"trading-desk-go/logs"
	"trading-desk-go/order"
)

var ErrPositionNotFound = errors.New("position not found")

type posKey struct {
	account    string
	instrument instrument.ID
}

// entry 单个持仓键及其独占锁。
type entry struct {
	mu      sync.Mutex
	pos     Position
	applied map[order.FillID]struct{} // 已应用成交号，精确去重
}

// Ledger 持仓账本。按 (account, instrument) 键独立加锁：
// 不同键的成交并行应用；同键成交按成交号精确去重，
// 到达顺序不影响恰好一次语义。
type Ledger struct {
	mu   sync.RWMutex
	keys map[posKey]*entry
	log  logs.Logger
}

func New() *Ledger {
	return &Ledger{
		keys: make(map[posKey]*entry),
		log:  logs.DefaultLogger,
	}
}

// SetLogger 替换默认日志器。
func (l *Ledger) SetLogger(lg logs.Logger) {
	if lg != nil {
		l.log = lg
	}
}

func (l *Ledger) entry(account string, ins instrument.ID, symbol string) *entry {
	k := posKey{account: account, instrument: ins}
	l.mu.RLock()
	e, ok := l.keys[k]
	l.mu.RUnlock()
	if ok {
		return e
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.keys[k]; ok {
		return e
	}
	e = &entry{
		pos:     Position{Account: account, Instrument: ins, Symbol: symbol},
		applied: make(map[order.FillID]struct{}),
	}
	l.keys[k] = e
	return e
}

// ApplyFill 应用一笔成交。已应用过的成交号视为重放，
// 直接跳过且不做任何修改（applied=false）；首次出现的成交号
// 无论到达顺序先后都会被应用。成交号为 0 时跳过去重。
func (l *Ledger) ApplyFill(account string, ins instrument.ID, symbol string, side order.Side, qty, price float64, fillID order.FillID) (Position, bool, error) {
	if qty <= 0 {
		return Position{}, false, fmt.Errorf("apply fill %d: quantity must be > 0", fillID)
	}
	if price <= 0 {
		return Position{}, false, fmt.Errorf("apply fill %d: price must be > 0", fillID)
	}

	e := l.entry(account, ins, symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	if fillID != 0 {
		if _, dup := e.applied[fillID]; dup {
			return e.pos, false, nil
		}
	}

	realized := e.pos.apply(side, qty, price)
	if fillID != 0 {
		e.applied[fillID] = struct{}{}
		e.pos.LastFillID = fillID
	}
	e.pos.UpdatedAt = time.Now().UTC()

	l.log.Info("position updated",
		"account", account, "symbol", symbol, "fill_id", int64(fillID),
		"qty", e.pos.Quantity, "avg_price", e.pos.AvgPrice, "realized", realized)
	return e.pos, true, nil
}

// Close 以给定价格全额对冲现有仓位（applyFill 的语法糖）。
// 不参与成交去重；生产环境中价格应取实时行情。
func (l *Ledger) Close(account string, ins instrument.ID, price float64) (Position, error) {
	if price <= 0 {
		return Position{}, fmt.Errorf("close position: price must be > 0")
	}
	k := posKey{account: account, instrument: ins}
	l.mu.RLock()
	e, ok := l.keys[k]
	l.mu.RUnlock()
	if !ok {
		return Position{}, fmt.Errorf("close %s/%d: %w", account, ins, ErrPositionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos.Quantity == 0 {
		return Position{}, fmt.Errorf("close %s/%d: no open quantity: %w", account, ins, ErrPositionNotFound)
	}
	side := order.SideSell
	if e.pos.Quantity < 0 {
		side = order.SideBuy
	}
	realized := e.pos.apply(side, math.Abs(e.pos.Quantity), price)
	e.pos.UpdatedAt = time.Now().UTC()
	l.log.Info("position closed",
		"account", account, "symbol", e.pos.Symbol, "price", price, "realized", realized)
	return e.pos, nil
}

// Position 返回单个持仓快照。
func (l *Ledger) Position(account string, ins instrument.ID) (Position, bool) {
	l.mu.RLock()
	e, ok := l.keys[posKey{account: account, instrument: ins}]
	l.mu.RUnlock()
	if !ok {
		return Position{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos, true
}

// Positions 返回账户全部持仓快照，按合约排序。
func (l *Ledger) Positions(account string) []Position {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.keys))
	for k, e := range l.keys {
		if k.account == account {
			entries = append(entries, e)
		}
	}
	l.mu.RUnlock()

	res := make([]Position, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		res = append(res, e.pos)
		e.mu.Unlock()
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Instrument < res[j].Instrument })
	return res
}
