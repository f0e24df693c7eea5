package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trading-desk-go/infrastructure/monitor"
	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/logs"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/query"
)

// Config 接入层配置。
type Config struct {
	DefaultAccount string
	AllowedOrigins []string
}

// Deps 服务器依赖，全部显式注入。
type Deps struct {
	Registry  *instrument.Registry
	Book      *order.Book
	Ledger    *ledger.Ledger
	Query     *query.Service
	Watchlist *marketdata.Watchlist
	Klines    *marketdata.KlineStore
	Quotes    marketdata.QuoteSource
	Monitor   *monitor.Monitor
	Log       logs.Logger
}

// Server REST + WebSocket 接入层。路径与原型前端保持一致，
// 可直接替换原 Express 服务。
type Server struct {
	cfg      Config
	deps     Deps
	router   *mux.Router
	hub      *Hub
	validate *validator.Validate
	started  time.Time
}

func NewServer(cfg Config, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logs.DefaultLogger
	}
	if cfg.DefaultAccount == "" {
		cfg.DefaultAccount = "default"
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		router:   mux.NewRouter(),
		hub:      NewHub(deps.Log),
		validate: validator.New(),
		started:  time.Now(),
	}
	if deps.Monitor != nil {
		s.hub.SetCountCallback(func(n int) {
			deps.Monitor.SetWSClients(n)
		})
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders", s.instrumented("orders_list", s.handleGetOrders)).Methods("GET")
	api.HandleFunc("/orders", s.instrumented("orders_submit", s.handleSubmitOrder)).Methods("POST")
	api.HandleFunc("/orders/cancel-all", s.instrumented("orders_cancel_all", s.handleCancelAll)).Methods("POST")
	api.HandleFunc("/orders/{id}", s.instrumented("orders_cancel", s.handleCancelOrder)).Methods("DELETE")
	api.HandleFunc("/fills", s.instrumented("fills_record", s.handleRecordFill)).Methods("POST")

	api.HandleFunc("/positions", s.instrumented("positions_list", s.handleGetPositions)).Methods("GET")
	api.HandleFunc("/positions/{id}/close", s.instrumented("positions_close", s.handleClosePosition)).Methods("POST")

	api.HandleFunc("/transactions", s.instrumented("transactions_list", s.handleGetTransactions)).Methods("GET")
	api.HandleFunc("/portfolio", s.instrumented("portfolio", s.handleGetPortfolio)).Methods("GET")

	api.HandleFunc("/watchlist", s.instrumented("watchlist_list", s.handleGetWatchlist)).Methods("GET")
	api.HandleFunc("/watchlist", s.instrumented("watchlist_add", s.handleAddWatchlist)).Methods("POST")
	api.HandleFunc("/watchlist/{id}", s.instrumented("watchlist_remove", s.handleRemoveWatchlist)).Methods("DELETE")

	api.HandleFunc("/chart/{symbol}/{timeframe}", s.instrumented("chart", s.handleGetChart)).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler 返回带 CORS 的根处理器，由生命周期组件托管监听。
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub 暴露事件中枢，供对账器发布成交/持仓更新。
func (s *Server) Hub() *Hub { return s.hub }

// Start 启动事件中枢。
func (s *Server) Start() { go s.hub.Run() }

// Stop 停止事件中枢。
func (s *Server) Stop() { s.hub.Stop() }

// account 取查询参数，缺省回退到配置账户（原型固定用户的对应物）。
func (s *Server) account(r *http.Request) string {
	if acct := r.URL.Query().Get("account"); acct != "" {
		return acct
	}
	return s.cfg.DefaultAccount
}

// instrumented 包装处理器，记录 REST 请求指标。
func (s *Server) instrumented(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		if s.deps.Monitor != nil {
			s.deps.Monitor.RecordRESTRequest(route, strconv.Itoa(rec.code))
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.deps.Query.Orders(s.account(r))
	views := make([]OrderView, len(orders))
	for i, o := range orders {
		views[i] = toOrderView(o)
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid order data", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		if s.deps.Monitor != nil {
			s.deps.Monitor.RecordOrderRejected()
		}
		respondError(w, http.StatusBadRequest, "invalid order data", err.Error())
		return
	}
	if req.Account == "" {
		req.Account = s.cfg.DefaultAccount
	}
	o, err := s.deps.Book.Submit(order.SubmitRequest{
		Account:     req.Account,
		Symbol:      req.Symbol,
		Exchange:    req.Exchange,
		Side:        order.Side(req.Side),
		Type:        order.Type(req.Type),
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		TimeInForce: order.TimeInForce(req.TimeInForce),
		ClientID:    req.ClientID,
	})
	if err != nil {
		if s.deps.Monitor != nil {
			s.deps.Monitor.RecordOrderRejected()
		}
		s.respondDomainError(w, err)
		return
	}
	if s.deps.Monitor != nil {
		s.deps.Monitor.RecordOrderSubmitted()
	}
	s.hub.Publish("order", toOrderView(o))
	respondJSON(w, http.StatusCreated, toOrderView(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}
	if err := s.deps.Book.Cancel(order.ID(id)); err != nil {
		s.respondDomainError(w, err)
		return
	}
	if s.deps.Monitor != nil {
		s.deps.Monitor.RecordOrderCanceled()
	}
	if o, ok := s.deps.Book.Get(order.ID(id)); ok {
		s.hub.Publish("order", toOrderView(o))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Book.CancelAll(s.account(r))
	if s.deps.Monitor != nil {
		for i := 0; i < report.Canceled; i++ {
			s.deps.Monitor.RecordOrderCanceled()
		}
	}
	resp := CancelAllResponse{Canceled: report.Canceled, Failures: make([]CancelFailureView, 0, len(report.Failures))}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, CancelFailureView{OrderID: int64(f.OrderID), Error: f.Err.Error()})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordFill(w http.ResponseWriter, r *http.Request) {
	var req RecordFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid fill data", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid fill data", err.Error())
		return
	}
	f, err := s.deps.Book.RecordFill(order.ID(req.OrderID), req.Quantity, req.Price)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if s.deps.Monitor != nil {
		s.deps.Monitor.RecordFill()
		if o, ok := s.deps.Book.Get(f.OrderID); ok && o.Status == order.StatusFilled {
			s.deps.Monitor.RecordOrderFilled()
		}
	}
	respondJSON(w, http.StatusCreated, toFillView(f))
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	views, err := s.deps.Query.Positions(s.account(r))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// 平仓最多对冲轮数：每轮之间其他订单可能继续成交
const maxClosePasses = 3

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid position id", "")
		return
	}
	account := s.account(r)
	insID := instrument.ID(id)
	ins, ok := s.deps.Registry.Get(insID)
	if !ok {
		respondError(w, http.StatusNotFound, "instrument not found", "")
		return
	}

	// 对冲单提交期间可能有并发成交落账，单次快照会留下残余仓位。
	// 每轮重读持仓快照并全额对冲，直到数量归零或轮数用尽。
	for pass := 0; pass < maxClosePasses; pass++ {
		pos, ok := s.deps.Ledger.Position(account, insID)
		if !ok || pos.Quantity == 0 {
			if pass == 0 {
				respondError(w, http.StatusNotFound, "position not found", "")
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		q, err := s.deps.Quotes.Quote(ins.Symbol)
		if err != nil {
			s.respondDomainError(w, err)
			return
		}

		// 以市价单全额对冲，走完整的订单->成交->对账链路
		side := order.SideSell
		qty := pos.Quantity
		if qty < 0 {
			side = order.SideBuy
			qty = -qty
		}
		o, err := s.deps.Book.Submit(order.SubmitRequest{
			Account:  account,
			Symbol:   ins.Symbol,
			Exchange: ins.Exchange,
			Side:     side,
			Type:     order.TypeMarket,
			Quantity: qty,
		})
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		if _, err := s.deps.Book.RecordFill(o.ID, qty, q.Last); err != nil {
			s.respondDomainError(w, err)
			return
		}
		if updated, ok := s.deps.Book.Get(o.ID); ok {
			s.hub.Publish("order", toOrderView(updated))
		}
	}

	if pos, ok := s.deps.Ledger.Position(account, insID); ok && pos.Quantity != 0 {
		respondError(w, http.StatusConflict, "position still open after close", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	txns := s.deps.Query.Transactions(s.account(r))
	views := make([]TransactionView, len(txns))
	for i, t := range txns {
		views[i] = toTransactionView(t)
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Query.PortfolioSummary(s.account(r))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Watchlist.List()
	views := make([]WatchlistItemView, len(items))
	for i, it := range items {
		views[i] = toWatchlistView(it)
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req AddWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid watchlist data", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid watchlist data", err.Error())
		return
	}
	// 只允许已注册的合约进自选
	if _, err := s.deps.Registry.Resolve(req.Symbol, req.Exchange); err != nil {
		s.respondDomainError(w, err)
		return
	}
	it, err := s.deps.Watchlist.Add(req.Symbol, req.Exchange, req.Account)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid watchlist data", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, toWatchlistView(marketdata.ItemView{Item: it}))
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id", "")
		return
	}
	if err := s.deps.Watchlist.Remove(id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	timeframe := vars["timeframe"]
	step, err := marketdata.StepForTimeframe(timeframe)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid timeframe", err.Error())
		return
	}
	// 最近 500 根
	end := time.Now().UTC()
	start := end.Add(-500 * step)
	bars := s.deps.Klines.Series(symbol, timeframe, start, end)
	views := make([]KlineView, len(bars))
	for i, k := range bars {
		views[i] = toKlineView(k)
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
		"orders": len(s.deps.Query.Orders(s.cfg.DefaultAccount)),
	})
}

// respondDomainError 把领域错误映射为 HTTP 状态码。
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case order.IsValidation(err):
		respondError(w, http.StatusBadRequest, "invalid order data", err.Error())
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, instrument.ErrInstrumentNotFound),
		errors.Is(err, ledger.ErrPositionNotFound),
		errors.Is(err, marketdata.ErrWatchlistItemNotFound):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, order.ErrOverfill):
		if s.deps.Monitor != nil {
			s.deps.Monitor.RecordOverfill()
		}
		respondError(w, http.StatusConflict, "overfill rejected", err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid order state", err.Error())
	case errors.Is(err, instrument.ErrDuplicateInstrument):
		respondError(w, http.StatusConflict, "duplicate instrument", err.Error())
	case errors.Is(err, marketdata.ErrQuoteUnavailable):
		respondError(w, http.StatusBadGateway, "quote unavailable", err.Error())
	default:
		s.deps.Log.Error("request failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, message, detail string) {
	respondJSON(w, code, ErrorResponse{Message: message, Detail: detail})
}
