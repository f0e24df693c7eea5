package container

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trading-desk-go/api"
	"trading-desk-go/config"
	"trading-desk-go/infrastructure/logger"
	"trading-desk-go/infrastructure/monitor"
	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/query"
	"trading-desk-go/reconcile"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg *config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor

	// 核心服务
	registry   *instrument.Registry
	book       *order.Book
	ledger     *ledger.Ledger
	journal    *reconcile.Journal
	reconciler *reconcile.Reconciler
	quotes     *marketdata.StaticSource
	klines     *marketdata.KlineStore
	watchlist  *marketdata.Watchlist
	query      *query.Service

	// 接入层
	apiServer *api.Server

	// HTTP服务器
	httpServer    *http.Server
	metricsServer *http.Server

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}, nil
}

// NewFromConfig 从已加载的配置构建容器（测试、模拟器用）。
func NewFromConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildMarketData(); err != nil {
		return fmt.Errorf("build market data failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.buildAPIServer()
	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	logCfg := logger.Config{
		Level:      c.cfg.Logging.Level,
		Outputs:    c.cfg.Logging.Outputs,
		OutputFile: c.cfg.Logging.File,
		Format:     c.cfg.Logging.Format,
	}

	var err error
	c.logger, err = logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	monitorCfg := monitor.DefaultConfig()
	c.monitor = monitor.New(monitorCfg)

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildMarketData() error {
	c.quotes = marketdata.NewStaticSource()
	c.klines = marketdata.NewKlineStore()
	c.watchlist = marketdata.NewWatchlist(c.quotes)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, ic := range c.cfg.Instruments {
		if ic.BasePrice > 0 {
			c.quotes.SetLast(ic.Symbol, ic.BasePrice)
			// 为常用时间框架预生成演示K线
			for _, tf := range []string{"1m", "1h", "1d"} {
				step, _ := marketdata.StepForTimeframe(tf)
				c.klines.Seed(ic.Symbol, tf, ic.BasePrice, 500, step, rng)
			}
		}
	}
	for _, wc := range c.cfg.Watchlist {
		if _, err := c.watchlist.Add(wc.Symbol, wc.Exchange, wc.Account); err != nil {
			return fmt.Errorf("seed watchlist %s: %w", wc.Symbol, err)
		}
	}

	c.logger.Info("market data built")
	return nil
}

func (c *Container) buildCoreServices() error {
	eventLog := c.logger.AsEventLogger()

	c.registry = instrument.NewRegistry()
	for _, ic := range c.cfg.Instruments {
		if _, err := c.registry.Register(ic.Symbol, ic.Exchange, instrument.Meta{
			Name:       ic.Name,
			AssetClass: ic.AssetClass,
			Currency:   ic.Currency,
		}); err != nil {
			return fmt.Errorf("register instrument %s@%s: %w", ic.Symbol, ic.Exchange, err)
		}
	}

	c.ledger = ledger.New()
	c.ledger.SetLogger(eventLog)
	c.journal = reconcile.NewJournal()
	c.reconciler = reconcile.New(c.ledger, c.journal)
	c.reconciler.SetLogger(eventLog)

	c.book = order.NewBook(c.registry)
	c.book.SetLogger(eventLog)
	c.book.SetFillSink(c.reconciler)

	c.query = query.NewService(c.registry, c.book, c.ledger, c.journal, c.quotes)

	c.logger.Info("core services built", zap.Int("instruments", len(c.cfg.Instruments)))
	return nil
}

func (c *Container) buildAPIServer() {
	c.apiServer = api.NewServer(api.Config{
		DefaultAccount: c.cfg.DefaultAccount,
		AllowedOrigins: c.cfg.Server.AllowedOrigins,
	}, api.Deps{
		Registry:  c.registry,
		Book:      c.book,
		Ledger:    c.ledger,
		Query:     c.query,
		Watchlist: c.watchlist,
		Klines:    c.klines,
		Quotes:    c.quotes,
		Monitor:   c.monitor,
		Log:       c.logger.AsEventLogger(),
	})

	// 对账完成后推送持仓更新并刷新指标
	hub := c.apiServer.Hub()
	mon := c.monitor
	quotes := c.quotes
	c.reconciler.SetEventSink(func(txn reconcile.Transaction, pos ledger.Position) {
		mon.RecordFillApplied()
		unrealized := 0.0
		if q, err := quotes.Quote(pos.Symbol); err == nil {
			unrealized = (q.Last - pos.AvgPrice) * pos.Quantity
		}
		mon.UpdatePosition(pos.Account, pos.Symbol, pos.Quantity, unrealized, pos.RealizedPnL)
		hub.Publish("position", map[string]interface{}{
			"account":      pos.Account,
			"symbol":       pos.Symbol,
			"quantity":     pos.Quantity,
			"averagePrice": pos.AvgPrice,
			"realizedPnL":  pos.RealizedPnL,
		})
		hub.Publish("transaction", map[string]interface{}{
			"id":       txn.ID,
			"orderId":  int64(txn.OrderID),
			"symbol":   txn.Symbol,
			"side":     string(txn.Side),
			"quantity": txn.Quantity,
			"price":    txn.Price,
		})
	})
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.SetLogger(c.logger)
	c.lifecycle.Register("event_hub", &hubComponent{server: c.apiServer})

	c.lifecycle.Register("api_server", &httpServerComponent{
		name:    "api_server",
		handler: c.apiServer.Handler(),
		addr:    c.cfg.Server.Addr,
		logger:  c.logger,
		server:  &c.httpServer,
	})

	if c.cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", c.monitor.Handler())
		c.lifecycle.Register("metrics_server", &httpServerComponent{
			name:    "metrics_server",
			handler: mux,
			addr:    c.cfg.Server.MetricsAddr,
			logger:  c.logger,
			server:  &c.metricsServer,
		})
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started", zap.String("addr", c.cfg.Server.Addr))
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	if err := c.lifecycle.StopAll(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
		return err
	}

	// 安全清场：撤销全部未完结订单
	report := c.book.CancelAll(c.cfg.DefaultAccount)
	if report.Canceled > 0 {
		c.logger.Info("open orders canceled on shutdown", zap.Int("count", report.Canceled))
	}

	if c.logger != nil {
		c.logger.Close()
	}

	return nil
}

// ApplyConfig 热更新：刷新行情基准价并注册新增合约。
// 服务器地址、日志等需要重启才生效。
func (c *Container) ApplyConfig(cfg config.AppConfig) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	for _, ic := range cfg.Instruments {
		if ic.BasePrice > 0 {
			c.quotes.SetLast(ic.Symbol, ic.BasePrice)
		}
		if _, err := c.registry.Resolve(ic.Symbol, ic.Exchange); err != nil {
			if _, regErr := c.registry.Register(ic.Symbol, ic.Exchange, instrument.Meta{
				Name:       ic.Name,
				AssetClass: ic.AssetClass,
				Currency:   ic.Currency,
			}); regErr != nil {
				return fmt.Errorf("apply config: %w", regErr)
			}
			c.logger.Info("instrument registered via reload",
				zap.String("symbol", ic.Symbol), zap.String("exchange", ic.Exchange))
		}
	}
	c.cfg.Instruments = cfg.Instruments
	c.logger.Info("config applied")
	return nil
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Book 暴露订单簿（模拟器用）。
func (c *Container) Book() *order.Book { return c.book }

// Query 暴露查询服务（模拟器用）。
func (c *Container) Query() *query.Service { return c.query }

// Reconciler 暴露对账器（模拟器用）。
func (c *Container) Reconciler() *reconcile.Reconciler { return c.reconciler }

// hubComponent WebSocket事件中枢组件
type hubComponent struct {
	server  *api.Server
	started bool
}

func (h *hubComponent) Start(ctx context.Context) error {
	if h.started {
		return nil
	}
	h.server.Start()
	h.started = true
	return nil
}

func (h *hubComponent) Stop() error {
	if !h.started {
		return nil
	}
	h.server.Stop()
	h.started = false
	return nil
}

func (h *hubComponent) Health() error {
	if !h.started {
		return fmt.Errorf("not started")
	}
	return nil
}
