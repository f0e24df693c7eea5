package reconcile

import (
	"sync"
	"time"

	"trading-desk-go/instrument"
	"trading-desk-go/order"
)

// Transaction 不可变的审计记录，每应用一笔成交追加一条。
type Transaction struct {
	ID         int64
	OrderID    order.ID
	FillID     order.FillID
	Account    string
	Instrument instrument.ID
	Symbol     string
	Side       order.Side
	Quantity   float64
	Price      float64
	Timestamp  time.Time
}

// Journal 只追加的交易流水，由对账器独占写入。
type Journal struct {
	mu      sync.RWMutex
	nextID  int64
	records []Transaction
}

func NewJournal() *Journal {
	return &Journal{}
}

// append 追加一条流水；仅限同包的对账器调用。
func (j *Journal) append(f order.Fill) Transaction {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	txn := Transaction{
		ID:         j.nextID,
		OrderID:    f.OrderID,
		FillID:     f.ID,
		Account:    f.Account,
		Instrument: f.Instrument,
		Symbol:     f.Symbol,
		Side:       f.Side,
		Quantity:   f.Quantity,
		Price:      f.Price,
		Timestamp:  f.Timestamp,
	}
	j.records = append(j.records, txn)
	return txn
}

// ByAccount 返回账户的全部流水（拷贝），按追加顺序。
func (j *Journal) ByAccount(account string) []Transaction {
	j.mu.RLock()
	defer j.mu.RUnlock()
	res := make([]Transaction, 0)
	for _, txn := range j.records {
		if txn.Account == account {
			res = append(res, txn)
		}
	}
	return res
}

// All 返回全部流水（拷贝）。
func (j *Journal) All() []Transaction {
	j.mu.RLock()
	defer j.mu.RUnlock()
	res := make([]Transaction, len(j.records))
	copy(res, j.records)
	return res
}

// Len 当前流水条数。
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}
