package order

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trading-desk-go/instrument"
	"trading-desk-go/logs"
)

// 数量比较的容差，避免多笔部分成交的浮点累计误差。
const qtyEps = 1e-9

// InstrumentResolver 订单簿只需要合约解析能力。
type InstrumentResolver interface {
	Resolve(symbol, exchange string) (instrument.ID, error)
}

// FillSink 成交事件的唯一下游（执行对账器）。
// 回调在持有订单锁时同步执行，保证同一订单的成交按序到达。
type FillSink interface {
	OnFill(Fill) error
}

// SubmitRequest 下单请求。
type SubmitRequest struct {
	Account     string
	Symbol      string
	Exchange    string
	Side        Side
	Type        Type
	Quantity    float64
	Price       float64
	StopPrice   float64
	TimeInForce TimeInForce
	ClientID    string
}

// CancelFailure 单笔撤单失败记录。
type CancelFailure struct {
	OrderID ID
	Err     error
}

// CancelReport 批量撤单聚合结果；部分成功不回滚。
type CancelReport struct {
	Canceled int
	Failures []CancelFailure
}

// slot 单个订单及其独占锁；不同订单的操作互不阻塞。
type slot struct {
	mu      sync.Mutex
	order   Order
	fillSeq int
}

// Book 订单簿/生命周期管理器。订单与成交记录只由 Book 写入。
type Book struct {
	registry InstrumentResolver
	sm       *StateMachine
	log      logs.Logger

	mu    sync.RWMutex
	slots map[ID]*slot
	sink  FillSink

	nextOrderID atomic.Int64
	nextFillID  atomic.Int64
}

func NewBook(registry InstrumentResolver) *Book {
	return &Book{
		registry: registry,
		sm:       NewStateMachine(),
		log:      logs.DefaultLogger,
		slots:    make(map[ID]*slot),
	}
}

// SetLogger 替换默认日志器。
func (b *Book) SetLogger(l logs.Logger) {
	if l != nil {
		b.log = l
	}
}

// SetFillSink 注册成交事件下游，必须在首笔成交之前设置。
func (b *Book) SetFillSink(sink FillSink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

func validateRequest(req SubmitRequest) *ValidationError {
	if req.Account == "" {
		return &ValidationError{Field: "account", Reason: "is required"}
	}
	if req.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	switch req.Side {
	case SideBuy, SideSell:
	default:
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown value %q", req.Side)}
	}
	switch req.Type {
	case TypeMarket, TypeStop:
	case TypeLimit, TypeStopLimit:
		if req.Price <= 0 {
			return &ValidationError{Field: "price", Reason: "is required for " + string(req.Type)}
		}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown value %q", req.Type)}
	}
	if req.Type == TypeStop || req.Type == TypeStopLimit {
		if req.StopPrice <= 0 {
			return &ValidationError{Field: "stopPrice", Reason: "is required for " + string(req.Type)}
		}
	}
	switch req.TimeInForce {
	case "", TIFGoodTillCancel, TIFImmediate, TIFFillOrKill, TIFDay:
	default:
		return &ValidationError{Field: "timeInForce", Reason: fmt.Sprintf("unknown value %q", req.TimeInForce)}
	}
	return nil
}

// Submit 校验请求并登记订单；成功后立即确认为 SUBMITTED（模拟券商回执）。
// 校验失败返回 ValidationError，不产生任何订单记录。
func (b *Book) Submit(req SubmitRequest) (Order, error) {
	if verr := validateRequest(req); verr != nil {
		return Order{}, verr
	}
	insID, err := b.registry.Resolve(req.Symbol, req.Exchange)
	if err != nil {
		return Order{}, &ValidationError{Field: "symbol", Reason: err.Error()}
	}
	if req.TimeInForce == "" {
		req.TimeInForce = TIFGoodTillCancel
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	now := time.Now().UTC()
	o := Order{
		ID:          ID(b.nextOrderID.Add(1)),
		ClientID:    req.ClientID,
		Account:     req.Account,
		Instrument:  insID,
		Symbol:      req.Symbol,
		Exchange:    req.Exchange,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		TimeInForce: req.TimeInForce,
		Status:      StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.sm.ValidateTransition(o.Status, StatusSubmitted); err != nil {
		return Order{}, err
	}
	o.Status = StatusSubmitted

	b.mu.Lock()
	b.slots[o.ID] = &slot{order: o}
	b.mu.Unlock()

	b.log.Info("order submitted",
		"order_id", int64(o.ID), "client_id", o.ClientID, "account", o.Account,
		"symbol", o.Symbol, "side", string(o.Side), "type", string(o.Type),
		"qty", o.Quantity, "price", o.Price)
	return o, nil
}

func (b *Book) slot(id ID) (*slot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.slots[id]
	return s, ok
}

// Get 返回订单快照。
func (b *Book) Get(id ID) (Order, bool) {
	s, ok := b.slot(id)
	if !ok {
		return Order{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order, true
}

// ListByAccount 返回账户全部订单快照，按订单号排序。
func (b *Book) ListByAccount(account string) []Order {
	b.mu.RLock()
	slots := make([]*slot, 0, len(b.slots))
	for _, s := range b.slots {
		slots = append(slots, s)
	}
	b.mu.RUnlock()

	res := make([]Order, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		o := s.order
		s.mu.Unlock()
		if o.Account == account {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Cancel 撤销订单。未知订单返回 ErrOrderNotFound，
// 终态订单返回 ErrInvalidTransition。
func (b *Book) Cancel(id ID) error {
	s, ok := b.slot(id)
	if !ok {
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := b.sm.ValidateTransition(s.order.Status, StatusCanceled); err != nil {
		return fmt.Errorf("cancel order %d: %w", id, err)
	}
	s.order.Status = StatusCanceled
	s.order.UpdatedAt = time.Now().UTC()
	b.log.Info("order canceled", "order_id", int64(id), "account", s.order.Account)
	return nil
}

// CancelAll 尝试撤销账户的全部订单；逐单加锁，失败聚合、不短路。
func (b *Book) CancelAll(account string) CancelReport {
	var report CancelReport
	for _, o := range b.ListByAccount(account) {
		if err := b.Cancel(o.ID); err != nil {
			report.Failures = append(report.Failures, CancelFailure{OrderID: o.ID, Err: err})
			continue
		}
		report.Canceled++
	}
	return report
}

// RecordFill 登记一笔成交并推进订单状态。
// 超出剩余数量的成交返回 ErrOverfill，订单状态不变。
// Fill 在订单锁内同步转发给 FillSink；下游应用失败时
// 成交仍保留在订单上，错误原样返回给调用方。
func (b *Book) RecordFill(id ID, qty, price float64) (Fill, error) {
	if qty <= 0 {
		return Fill{}, &ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	if price <= 0 {
		return Fill{}, &ValidationError{Field: "price", Reason: "must be > 0"}
	}
	s, ok := b.slot(id)
	if !ok {
		return Fill{}, fmt.Errorf("fill order %d: %w", id, ErrOrderNotFound)
	}

	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	o := &s.order
	if !b.sm.CanFill(o.Status) {
		return Fill{}, fmt.Errorf("fill order %d in state %s: %w", id, o.Status, ErrInvalidTransition)
	}
	if o.FilledQty+qty > o.Quantity+qtyEps {
		return Fill{}, fmt.Errorf("fill order %d: filled %v + %v exceeds %v: %w",
			id, o.FilledQty, qty, o.Quantity, ErrOverfill)
	}

	next := StatusPartial
	if math.Abs(o.Quantity-(o.FilledQty+qty)) <= qtyEps {
		next = StatusFilled
	}
	if err := b.sm.ValidateTransition(o.Status, next); err != nil {
		return Fill{}, err
	}

	// 加权平均成交价
	o.AvgFillPrice = (o.AvgFillPrice*o.FilledQty + price*qty) / (o.FilledQty + qty)
	o.FilledQty += qty
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	s.fillSeq++

	f := Fill{
		ID:         FillID(b.nextFillID.Add(1)),
		OrderID:    o.ID,
		OrderSeq:   s.fillSeq,
		Account:    o.Account,
		Instrument: o.Instrument,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   qty,
		Price:      price,
		Timestamp:  o.UpdatedAt,
	}
	b.log.Info("fill recorded",
		"fill_id", int64(f.ID), "order_id", int64(o.ID), "seq", f.OrderSeq,
		"qty", qty, "price", price, "status", string(o.Status))

	if sink != nil {
		if err := sink.OnFill(f); err != nil {
			b.log.Error("fill application failed",
				"fill_id", int64(f.ID), "order_id", int64(o.ID), "err", err)
			return f, fmt.Errorf("fill %d recorded but not applied: %w", f.ID, err)
		}
	}
	return f, nil
}
