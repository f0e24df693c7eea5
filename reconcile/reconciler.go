package reconcile

import (
	"fmt"
	"sync"
	"time"

	"trading-desk-go/ledger"
	"trading-desk-go/logs"
	"trading-desk-go/order"
)

// EventSink 对账完成后的可选下游（如行情推送），同步调用。
type EventSink func(Transaction, ledger.Position)

// Reconciler 执行对账器：Fill 事件的唯一订阅方。
// 每笔成交恰好应用一次：先更新持仓账本，再追加交易流水，
// 两步在同一临界区内完成；任一失败则两者都不可见。
type Reconciler struct {
	ledger  *ledger.Ledger
	journal *Journal
	log     logs.Logger
	sink    EventSink

	mu      sync.Mutex
	applied map[order.FillID]struct{}

	// 统计信息
	appliedCount   int64
	duplicateCount int64
	failureCount   int64
	lastApplyTime  time.Time
}

func New(l *ledger.Ledger, j *Journal) *Reconciler {
	return &Reconciler{
		ledger:  l,
		journal: j,
		log:     logs.DefaultLogger,
		applied: make(map[order.FillID]struct{}),
	}
}

// SetLogger 替换默认日志器。
func (r *Reconciler) SetLogger(lg logs.Logger) {
	if lg != nil {
		r.log = lg
	}
}

// SetEventSink 注册对账完成事件的下游。
func (r *Reconciler) SetEventSink(sink EventSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// OnFill 实现 order.FillSink。重放的成交号直接跳过（幂等）；
// 账本应用失败时不追加流水，错误返回给订单簿。
func (r *Reconciler) OnFill(f order.Fill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.applied[f.ID]; ok {
		r.duplicateCount++
		return nil
	}

	pos, applied, err := r.ledger.ApplyFill(f.Account, f.Instrument, f.Symbol, f.Side, f.Quantity, f.Price, f.ID)
	if err != nil {
		r.failureCount++
		return fmt.Errorf("reconcile fill %d: %w", f.ID, err)
	}
	if !applied {
		// 账本已应用过该成交号：标记后跳过，不重复记账
		r.applied[f.ID] = struct{}{}
		r.duplicateCount++
		return nil
	}

	txn := r.journal.append(f)
	r.applied[f.ID] = struct{}{}
	r.appliedCount++
	r.lastApplyTime = time.Now().UTC()

	r.log.Info("fill reconciled",
		"fill_id", int64(f.ID), "txn_id", txn.ID, "order_id", int64(f.OrderID),
		"account", f.Account, "symbol", f.Symbol,
		"position", pos.Quantity, "realized", pos.RealizedPnL)

	if r.sink != nil {
		r.sink(txn, pos)
	}
	return nil
}

// Stats 对账统计信息
type Stats struct {
	Applied       int64
	Duplicates    int64
	Failures      int64
	LastApplyTime time.Time
}

// GetStats 返回统计快照。
func (r *Reconciler) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Applied:       r.appliedCount,
		Duplicates:    r.duplicateCount,
		Failures:      r.failureCount,
		LastApplyTime: r.lastApplyTime,
	}
}
