package query_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/query"
	"trading-desk-go/reconcile"
)

type fixture struct {
	registry *instrument.Registry
	book     *order.Book
	ledger   *ledger.Ledger
	journal  *reconcile.Journal
	quotes   *marketdata.StaticSource
	svc      *query.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry: instrument.NewRegistry(),
		ledger:   ledger.New(),
		journal:  reconcile.NewJournal(),
		quotes:   marketdata.NewStaticSource(),
	}
	_, err := f.registry.Register("AAPL", "NASDAQ", instrument.Meta{Currency: "USD"})
	require.NoError(t, err)
	f.book = order.NewBook(f.registry)
	f.book.SetFillSink(reconcile.New(f.ledger, f.journal))
	f.svc = query.NewService(f.registry, f.book, f.ledger, f.journal, f.quotes)
	return f
}

func (f *fixture) buyAndFill(t *testing.T, qty, price float64) {
	t.Helper()
	o, err := f.book.Submit(order.SubmitRequest{
		Account: "acct", Symbol: "AAPL", Exchange: "NASDAQ",
		Side: order.SideBuy, Type: order.TypeMarket, Quantity: qty,
	})
	require.NoError(t, err)
	_, err = f.book.RecordFill(o.ID, qty, price)
	require.NoError(t, err)
}

func TestServicePositions(t *testing.T) {
	f := newFixture(t)
	f.quotes.SetLast("AAPL", 110)
	f.buyAndFill(t, 10, 100)

	views, err := f.svc.Positions("acct")
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "AAPL", v.Symbol)
	assert.Equal(t, "NASDAQ", v.Exchange)
	assert.Equal(t, 10.0, v.Quantity)
	assert.Equal(t, 100.0, v.AvgPrice)
	assert.Equal(t, 110.0, v.MarketPrice)
	assert.InDelta(t, 1100.0, v.MarketValue, 1e-9)
	assert.InDelta(t, 100.0, v.UnrealizedPnL, 1e-9)
}

// TestServicePositions_QuoteUnavailable 在持仓位行情缺失时整体报错
func TestServicePositions_QuoteUnavailable(t *testing.T) {
	f := newFixture(t)
	f.quotes.SetLast("AAPL", 100)
	f.buyAndFill(t, 10, 100)

	f.quotes.SetQuote(marketdata.Quote{Symbol: "AAPL", Last: 0})
	_, err := f.svc.Positions("acct")
	assert.True(t, errors.Is(err, marketdata.ErrQuoteUnavailable))
}

func TestServiceOrdersAndTransactions(t *testing.T) {
	f := newFixture(t)
	f.quotes.SetLast("AAPL", 100)
	f.buyAndFill(t, 5, 100)
	f.buyAndFill(t, 3, 102)

	orders := f.svc.Orders("acct")
	assert.Len(t, orders, 2)
	assert.Empty(t, f.svc.Orders("other"))

	txns := f.svc.Transactions("acct")
	require.Len(t, txns, 2)
	assert.Equal(t, 5.0, txns[0].Quantity)
	assert.Equal(t, 3.0, txns[1].Quantity)
}

func TestServicePortfolioSummary(t *testing.T) {
	f := newFixture(t)
	f.quotes.SetLast("AAPL", 120)
	f.buyAndFill(t, 10, 100)

	summary, err := f.svc.PortfolioSummary("acct")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Positions)
	assert.InDelta(t, 1200.0, summary.MarketValue, 1e-9)
	assert.InDelta(t, 1000.0, summary.Investment, 1e-9)
	assert.InDelta(t, 200.0, summary.UnrealizedPnL, 1e-9)

	// 空账户返回零值汇总
	empty, err := f.svc.PortfolioSummary("nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Positions)
	assert.Equal(t, 0.0, empty.MarketValue)
}
