package instrument

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ID 合约标识，由注册表的序列计数器分配。
type ID int64

// Instrument 合约静态信息，注册后不可变。
type Instrument struct {
	ID         ID
	Symbol     string
	Exchange   string
	Name       string
	AssetClass string
	Currency   string
}

// Meta 注册时的附加元数据。
type Meta struct {
	Name       string
	AssetClass string
	Currency   string
}

var (
	ErrDuplicateInstrument = errors.New("duplicate instrument")
	ErrInstrumentNotFound  = errors.New("instrument not found")
)

// Registry 维护 (symbol, exchange) 到合约的映射。只在注册时写入。
type Registry struct {
	mu     sync.RWMutex
	nextID ID
	byID   map[ID]Instrument
	byKey  map[string]ID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[ID]Instrument),
		byKey: make(map[string]ID),
	}
}

func registryKey(symbol, exchange string) string {
	return symbol + "@" + exchange
}

// Register 登记新合约；(symbol, exchange) 已存在时返回 ErrDuplicateInstrument。
func (r *Registry) Register(symbol, exchange string, meta Meta) (ID, error) {
	if symbol == "" || exchange == "" {
		return 0, fmt.Errorf("register instrument: symbol and exchange are required")
	}
	if meta.Currency == "" {
		meta.Currency = "USD"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey(symbol, exchange)
	if _, ok := r.byKey[k]; ok {
		return 0, fmt.Errorf("register %s: %w", k, ErrDuplicateInstrument)
	}
	r.nextID++
	ins := Instrument{
		ID:         r.nextID,
		Symbol:     symbol,
		Exchange:   exchange,
		Name:       meta.Name,
		AssetClass: meta.AssetClass,
		Currency:   meta.Currency,
	}
	r.byID[ins.ID] = ins
	r.byKey[k] = ins.ID
	return ins.ID, nil
}

// Resolve 按 (symbol, exchange) 查找合约标识。
func (r *Registry) Resolve(symbol, exchange string) (ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[registryKey(symbol, exchange)]
	if !ok {
		return 0, fmt.Errorf("resolve %s@%s: %w", symbol, exchange, ErrInstrumentNotFound)
	}
	return id, nil
}

// Get 按标识返回合约快照。
func (r *Registry) Get(id ID) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ins, ok := r.byID[id]
	return ins, ok
}

// List 返回全部合约（拷贝），按标识排序。
func (r *Registry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Instrument, 0, len(r.byID))
	for _, ins := range r.byID {
		res = append(res, ins)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}
