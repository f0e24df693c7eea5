package ledger

import (
	"math"
	"time"

	"trading-desk-go/instrument"
	"trading-desk-go/order"
)

const qtyEps = 1e-9

// Position 持仓记录，按 (account, instrument) 唯一。
// 仅由执行对账器通过 Ledger 写入；数量符号约定：负数为空头。
// Quantity 为零时 AvgPrice 无定义（归零），已实现盈亏保留。
type Position struct {
	Account     string
	Instrument  instrument.ID
	Symbol      string
	Quantity    float64
	AvgPrice    float64
	RealizedPnL float64
	LastFillID  order.FillID // 最近应用的成交号（去重在账本层按成交号集合完成）
	UpdatedAt   time.Time
}

// apply 按一笔成交更新仓位，返回本笔实现盈亏。调用方持锁。
func (p *Position) apply(side order.Side, qty, price float64) float64 {
	signed := qty
	if side == order.SideSell {
		signed = -qty
	}

	// 开仓或同向加仓：加权平均成本
	if p.Quantity == 0 || sameSign(p.Quantity, signed) {
		total := p.AvgPrice*math.Abs(p.Quantity) + price*math.Abs(signed)
		p.Quantity += signed
		p.AvgPrice = total / math.Abs(p.Quantity)
		return 0
	}

	// 反向成交：先对冲重叠数量，实现盈亏
	closing := math.Min(math.Abs(p.Quantity), math.Abs(signed))
	realized := (price - p.AvgPrice) * closing * sign(p.Quantity)
	p.RealizedPnL += realized

	oldQty := p.Quantity
	p.Quantity += signed
	switch {
	case math.Abs(p.Quantity) <= qtyEps:
		// 平仓：成本基准归零，记录保留
		p.Quantity = 0
		p.AvgPrice = 0
	case sameSign(p.Quantity, oldQty):
		// 减仓：平均成本不变
	default:
		// 翻仓：剩余部分以成交价为新成本
		p.AvgPrice = price
	}
	return realized
}

func sameSign(a, b float64) bool { return a*b > 0 }

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
