package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersSubmitted prometheus.Counter
	ordersCanceled  prometheus.Counter
	ordersFilled    prometheus.Counter
	ordersRejected  prometheus.Counter
	overfillRejects prometheus.Counter

	// 成交/对账指标
	fillsRecorded   prometheus.Counter
	fillsApplied    prometheus.Counter
	fillsDuplicate  prometheus.Counter
	fillApplyErrors prometheus.Counter
	applyLatency    prometheus.Histogram

	// 持仓指标
	positionQty   *prometheus.GaugeVec
	unrealizedPnL *prometheus.GaugeVec
	realizedPnL   *prometheus.GaugeVec

	// 接入层指标
	restRequests *prometheus.CounterVec
	wsClients    prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "td",
		Subsystem: "engine",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		ordersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_submitted_total",
			Help:      "订单提交总数",
		}),
		ordersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_canceled_total",
			Help:      "订单撤销总数",
		}),
		ordersFilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_filled_total",
			Help:      "订单完全成交总数",
		}),
		ordersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "下单请求校验失败总数",
		}),
		overfillRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "overfill_rejects_total",
			Help:      "超额成交被拒总数",
		}),

		fillsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_recorded_total",
			Help:      "登记成交笔数",
		}),
		fillsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_applied_total",
			Help:      "账本应用成交笔数",
		}),
		fillsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_duplicate_total",
			Help:      "重放/重复成交跳过笔数",
		}),
		fillApplyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fill_apply_errors_total",
			Help:      "账本应用失败笔数",
		}),
		applyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fill_apply_latency_seconds",
			Help:      "成交应用延迟分布（秒）",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		positionQty: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position_quantity",
			Help:      "当前净仓位（负数为空头）",
		}, []string{"account", "symbol"}),
		unrealizedPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unrealized_pnl",
			Help:      "未实现盈亏",
		}, []string{"account", "symbol"}),
		realizedPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "realized_pnl",
			Help:      "已实现盈亏",
		}, []string{"account", "symbol"}),

		restRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rest_requests_total",
			Help:      "REST 请求总数",
		}, []string{"route", "code"}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_clients",
			Help:      "当前 WebSocket 连接数",
		}),
	}
	return m
}

func (m *Monitor) RecordOrderSubmitted() { m.ordersSubmitted.Inc() }
func (m *Monitor) RecordOrderCanceled()  { m.ordersCanceled.Inc() }
func (m *Monitor) RecordOrderFilled()    { m.ordersFilled.Inc() }
func (m *Monitor) RecordOrderRejected()  { m.ordersRejected.Inc() }
func (m *Monitor) RecordOverfill()       { m.overfillRejects.Inc() }

func (m *Monitor) RecordFill()                        { m.fillsRecorded.Inc() }
func (m *Monitor) RecordFillApplied()                 { m.fillsApplied.Inc() }
func (m *Monitor) RecordFillDuplicate()               { m.fillsDuplicate.Inc() }
func (m *Monitor) RecordFillApplyError()              { m.fillApplyErrors.Inc() }
func (m *Monitor) ObserveApplyLatency(seconds float64) { m.applyLatency.Observe(seconds) }

// UpdatePosition 更新持仓相关仪表
func (m *Monitor) UpdatePosition(account, symbol string, qty, unrealized, realized float64) {
	m.positionQty.WithLabelValues(account, symbol).Set(qty)
	m.unrealizedPnL.WithLabelValues(account, symbol).Set(unrealized)
	m.realizedPnL.WithLabelValues(account, symbol).Set(realized)
}

// RecordRESTRequest 记录一次 REST 请求
func (m *Monitor) RecordRESTRequest(route, code string) {
	m.restRequests.WithLabelValues(route, code).Inc()
}

func (m *Monitor) WSClientConnected()    { m.wsClients.Inc() }
func (m *Monitor) WSClientDisconnected() { m.wsClients.Dec() }

// SetWSClients 按当前连接数直接设置仪表
func (m *Monitor) SetWSClients(n int) { m.wsClients.Set(float64(n)) }

// Handler 返回 /metrics 的 HTTP 处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层注册表，便于测试收集
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
