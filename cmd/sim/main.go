package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/query"
	"trading-desk-go/reconcile"
)

// 一个极简的本地模拟：随机生成订单流，驱动下单、成交与对账链路，
// 最后打印持仓与组合汇总。仅用于演示，不启动 HTTP 服务。
func main() {
	symbol := flag.String("symbol", "AAPL", "instrument symbol")
	exchange := flag.String("exchange", "NASDAQ", "instrument exchange")
	account := flag.String("account", "sim", "account id")
	orders := flag.Int("orders", 10, "number of random orders to submit")
	base := flag.Float64("base", 185.0, "base price for the random walk")
	fillRatio := flag.Float64("fillRatio", 0.8, "probability a submitted order gets filled")
	flag.Parse()

	registry := instrument.NewRegistry()
	if _, err := registry.Register(*symbol, *exchange, instrument.Meta{}); err != nil {
		fmt.Printf("register failed: %v\n", err)
		return
	}

	led := ledger.New()
	journal := reconcile.NewJournal()
	rec := reconcile.New(led, journal)
	book := order.NewBook(registry)
	book.SetFillSink(rec)

	quotes := marketdata.NewStaticSource()
	quotes.SetLast(*symbol, *base)
	svc := query.NewService(registry, book, led, journal, quotes)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	price := *base
	for i := 0; i < *orders; i++ {
		price += price * 0.002 * rng.NormFloat64()
		quotes.SetLast(*symbol, price)

		side := order.SideBuy
		if rng.Float64() < 0.5 {
			side = order.SideSell
		}
		qty := float64(1 + rng.Intn(10))
		o, err := book.Submit(order.SubmitRequest{
			Account:  *account,
			Symbol:   *symbol,
			Exchange: *exchange,
			Side:     side,
			Type:     order.TypeMarket,
			Quantity: qty,
		})
		if err != nil {
			fmt.Printf("order %d submit err=%v\n", i, err)
			continue
		}
		if rng.Float64() > *fillRatio {
			_ = book.Cancel(o.ID)
			fmt.Printf("order %d %s %.0f@%.2f canceled\n", i, side, qty, price)
			continue
		}
		// 随机拆成 1~2 笔成交
		if qty > 1 && rng.Float64() < 0.5 {
			half := float64(int(qty / 2))
			if _, err := book.RecordFill(o.ID, half, price); err != nil {
				fmt.Printf("order %d fill err=%v\n", i, err)
				continue
			}
			qty -= half
		}
		if _, err := book.RecordFill(o.ID, qty, price); err != nil {
			fmt.Printf("order %d fill err=%v\n", i, err)
			continue
		}
		fmt.Printf("order %d %s filled @%.2f\n", i, side, price)
	}

	stats := rec.GetStats()
	fmt.Printf("\nreconciled fills: applied=%d duplicates=%d failures=%d\n",
		stats.Applied, stats.Duplicates, stats.Failures)

	views, err := svc.Positions(*account)
	if err != nil {
		fmt.Printf("positions err=%v\n", err)
		return
	}
	for _, v := range views {
		fmt.Printf("position %s qty=%.2f avg=%.2f mkt=%.2f unrealized=%.2f realized=%.2f\n",
			v.Symbol, v.Quantity, v.AvgPrice, v.MarketPrice, v.UnrealizedPnL, v.RealizedPnL)
	}
	if summary, err := svc.PortfolioSummary(*account); err == nil {
		fmt.Printf("portfolio value=%.2f investment=%.2f unrealized=%.2f realized=%.2f positions=%d\n",
			summary.MarketValue, summary.Investment, summary.UnrealizedPnL, summary.RealizedPnL, summary.Positions)
	}
}
