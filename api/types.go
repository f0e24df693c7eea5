package api

import (
	"time"

	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/reconcile"
)

// SubmitOrderRequest 下单请求体。结构校验交给 validator，
// 业务校验（价格与订单类型的约束、合约存在性）由订单簿完成。
type SubmitOrderRequest struct {
	Account     string  `json:"account"`
	Symbol      string  `json:"symbol" validate:"required"`
	Exchange    string  `json:"exchange" validate:"required"`
	Side        string  `json:"side" validate:"required,oneof=BUY SELL"`
	Type        string  `json:"type" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"omitempty,gt=0"`
	StopPrice   float64 `json:"stopPrice" validate:"omitempty,gt=0"`
	TimeInForce string  `json:"timeInForce" validate:"omitempty,oneof=GTC IOC FOK DAY"`
	ClientID    string  `json:"clientId"`
}

// RecordFillRequest 外部执行场所推送的成交回报。
type RecordFillRequest struct {
	OrderID  int64   `json:"orderId" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	Price    float64 `json:"price" validate:"required,gt=0"`
}

// AddWatchlistRequest 自选列表新增请求。
type AddWatchlistRequest struct {
	Symbol   string `json:"symbol" validate:"required"`
	Exchange string `json:"exchange" validate:"required"`
	Account  string `json:"account"`
}

// OrderView 订单的对外快照。
type OrderView struct {
	ID           int64   `json:"id"`
	ClientID     string  `json:"clientId"`
	Account      string  `json:"account"`
	InstrumentID int64   `json:"instrumentId"`
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	Side         string  `json:"side"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price,omitempty"`
	StopPrice    float64 `json:"stopPrice,omitempty"`
	TimeInForce  string  `json:"timeInForce"`
	Status       string  `json:"status"`
	FilledQty    float64 `json:"filledQuantity"`
	AvgFillPrice float64 `json:"avgFillPrice,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

func toOrderView(o order.Order) OrderView {
	return OrderView{
		ID:           int64(o.ID),
		ClientID:     o.ClientID,
		Account:      o.Account,
		InstrumentID: int64(o.Instrument),
		Symbol:       o.Symbol,
		Exchange:     o.Exchange,
		Side:         string(o.Side),
		Type:         string(o.Type),
		Quantity:     o.Quantity,
		Price:        o.Price,
		StopPrice:    o.StopPrice,
		TimeInForce:  string(o.TimeInForce),
		Status:       string(o.Status),
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// FillView 成交回执。
type FillView struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"orderId"`
	OrderSeq int     `json:"orderSeq"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Ts       string  `json:"timestamp"`
}

func toFillView(f order.Fill) FillView {
	return FillView{
		ID:       int64(f.ID),
		OrderID:  int64(f.OrderID),
		OrderSeq: f.OrderSeq,
		Symbol:   f.Symbol,
		Side:     string(f.Side),
		Quantity: f.Quantity,
		Price:    f.Price,
		Ts:       f.Timestamp.Format(time.RFC3339Nano),
	}
}

// TransactionView 交易流水。
type TransactionView struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"orderId"`
	FillID   int64   `json:"fillId"`
	Account  string  `json:"account"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Ts       string  `json:"timestamp"`
}

func toTransactionView(t reconcile.Transaction) TransactionView {
	return TransactionView{
		ID:       t.ID,
		OrderID:  int64(t.OrderID),
		FillID:   int64(t.FillID),
		Account:  t.Account,
		Symbol:   t.Symbol,
		Side:     string(t.Side),
		Quantity: t.Quantity,
		Price:    t.Price,
		Ts:       t.Timestamp.Format(time.RFC3339Nano),
	}
}

// CancelAllResponse 批量撤单结果。
type CancelAllResponse struct {
	Canceled int                 `json:"canceled"`
	Failures []CancelFailureView `json:"failures"`
}

type CancelFailureView struct {
	OrderID int64  `json:"orderId"`
	Error   string `json:"error"`
}

// WatchlistItemView 自选条目加行情。
type WatchlistItemView struct {
	ID       int64   `json:"id"`
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Account  string  `json:"account,omitempty"`
	Last     float64 `json:"last"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Volume   float64 `json:"volume"`
}

func toWatchlistView(v marketdata.ItemView) WatchlistItemView {
	return WatchlistItemView{
		ID:       v.ID,
		Symbol:   v.Symbol,
		Exchange: v.Exchange,
		Account:  v.Account,
		Last:     v.Last,
		Bid:      v.Bid,
		Ask:      v.Ask,
		Volume:   v.Volume,
	}
}

// KlineView 图表蜡烛数据，时间戳为毫秒。
type KlineView struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func toKlineView(k marketdata.Kline) KlineView {
	return KlineView{
		Timestamp: k.Timestamp.UnixMilli(),
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
	}
}

// ErrorResponse 错误应答。
type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Event 推送给展示层的事件信封。
type Event struct {
	Type string      `json:"type"` // order / fill / position
	Data interface{} `json:"data"`
	Ts   int64       `json:"ts"`
}
