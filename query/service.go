package query

import (
	"fmt"

	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/reconcile"
)

// Service 只读投影层。不持有任何写路径；
// 行情查询失败只影响本次读取，绝不波及账本状态。
type Service struct {
	registry *instrument.Registry
	book     *order.Book
	ledger   *ledger.Ledger
	journal  *reconcile.Journal
	quotes   marketdata.QuoteSource
}

func NewService(reg *instrument.Registry, book *order.Book, led *ledger.Ledger, journal *reconcile.Journal, quotes marketdata.QuoteSource) *Service {
	return &Service{
		registry: reg,
		book:     book,
		ledger:   led,
		journal:  journal,
		quotes:   quotes,
	}
}

// PositionView 持仓加市值快照，可直接序列化给展示层。
type PositionView struct {
	Account       string  `json:"account"`
	InstrumentID  int64   `json:"instrumentId"`
	Symbol        string  `json:"symbol"`
	Exchange      string  `json:"exchange"`
	Currency      string  `json:"currency"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"averagePrice"`
	MarketPrice   float64 `json:"marketPrice"`
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
	RealizedPnL   float64 `json:"realizedPnL"`
}

// PortfolioSummary 账户级汇总。
type PortfolioSummary struct {
	Account       string  `json:"account"`
	MarketValue   float64 `json:"marketValue"`
	Investment    float64 `json:"investment"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
	RealizedPnL   float64 `json:"realizedPnL"`
	Positions     int     `json:"positions"`
}

// Positions 返回账户持仓视图。任一在持仓位的行情缺失即返回错误。
func (s *Service) Positions(account string) ([]PositionView, error) {
	positions := s.ledger.Positions(account)
	res := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		view := PositionView{
			Account:      p.Account,
			InstrumentID: int64(p.Instrument),
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgPrice:     p.AvgPrice,
			RealizedPnL:  p.RealizedPnL,
		}
		if ins, ok := s.registry.Get(p.Instrument); ok {
			view.Exchange = ins.Exchange
			view.Currency = ins.Currency
		}
		if p.Quantity != 0 {
			q, err := s.quotes.Quote(p.Symbol)
			if err != nil {
				return nil, fmt.Errorf("positions %s: %w", account, err)
			}
			view.MarketPrice = q.Last
			view.MarketValue = p.Quantity * q.Last
			view.UnrealizedPnL = (q.Last - p.AvgPrice) * p.Quantity
		}
		res = append(res, view)
	}
	return res, nil
}

// Orders 返回账户订单快照。
func (s *Service) Orders(account string) []order.Order {
	return s.book.ListByAccount(account)
}

// Transactions 返回账户交易流水。
func (s *Service) Transactions(account string) []reconcile.Transaction {
	return s.journal.ByAccount(account)
}

// PortfolioSummary 聚合市值 Σ qty·last、成本与盈亏。
func (s *Service) PortfolioSummary(account string) (PortfolioSummary, error) {
	views, err := s.Positions(account)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("portfolio %s: %w", account, err)
	}
	summary := PortfolioSummary{Account: account}
	for _, v := range views {
		summary.MarketValue += v.MarketValue
		if v.Quantity != 0 {
			summary.Investment += v.AvgPrice * abs(v.Quantity)
			summary.Positions++
		}
		summary.UnrealizedPnL += v.UnrealizedPnL
		summary.RealizedPnL += v.RealizedPnL
	}
	return summary, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
