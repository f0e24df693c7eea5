package order

import (
	"time"

	"trading-desk-go/instrument"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusSubmitted Status = "SUBMITTED"
	StatusPartial   Status = "PARTIAL"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type is the order type.
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// TimeInForce 有效期标签。本引擎内仅作为元数据透传，
// 实际过期由外部执行场所负责。
type TimeInForce string

const (
	TIFGoodTillCancel TimeInForce = "GTC"
	TIFImmediate      TimeInForce = "IOC"
	TIFFillOrKill     TimeInForce = "FOK"
	TIFDay            TimeInForce = "DAY"
)

// ID 订单标识；FillID 成交标识。各自独立的序列空间。
type (
	ID     int64
	FillID int64
)

// Order holds the full order record. Mutated only by the Book;
// terminal states are immutable.
type Order struct {
	ID           ID
	ClientID     string
	Account      string
	Instrument   instrument.ID
	Symbol       string
	Exchange     string
	Side         Side
	Type         Type
	Quantity     float64
	Price        float64
	StopPrice    float64
	TimeInForce  TimeInForce
	Status       Status
	FilledQty    float64
	AvgFillPrice float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RemainingQty returns the unfilled portion.
func (o Order) RemainingQty() float64 { return o.Quantity - o.FilledQty }

// Fill 单笔成交事件，生成后不可变，由执行对账器恰好消费一次。
type Fill struct {
	ID         FillID
	OrderID    ID
	OrderSeq   int // 订单内递增序号
	Account    string
	Instrument instrument.ID
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Timestamp  time.Time
}
