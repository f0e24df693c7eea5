package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-desk-go/infrastructure/logger"
)

// 组件停机宽限期：超时后强制放弃等待在途请求
const shutdownTimeout = 5 * time.Second

// Lifecycle 可托管组件：事件中枢、API 服务器、指标服务器等
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

type namedComponent struct {
	name string
	c    Lifecycle
}

// LifecycleManager 按注册顺序启动、逆序停止交易台的各组件。
// 组件以名字注册，启动失败与健康检查的报错都带组件名。
type LifecycleManager struct {
	mu         sync.RWMutex
	components []namedComponent
	log        *logger.Logger
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// SetLogger 设置组件启停日志的输出；不设置则静默。
func (m *LifecycleManager) SetLogger(lg *logger.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = lg
}

// Register 以名字注册组件，名字用于日志与错误定位
func (m *LifecycleManager) Register(name string, c Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, namedComponent{name: name, c: c})
}

// StartAll 按注册顺序启动所有组件。
// 任一组件启动失败时，逆序回滚已启动的组件后返回错误。
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, nc := range m.components {
		if err := nc.c.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.components[j].c.Stop()
			}
			return fmt.Errorf("start %s failed: %w", nc.name, err)
		}
		m.logInfo("component started", zap.String("component", nc.name))
	}
	return nil
}

// StopAll 逆序停止所有组件，收集最后一个错误。
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		nc := m.components[i]
		if err := nc.c.Stop(); err != nil {
			lastErr = fmt.Errorf("stop %s failed: %w", nc.name, err)
			continue
		}
		m.logInfo("component stopped", zap.String("component", nc.name))
	}
	return lastErr
}

// CheckHealth 逐个检查组件健康，返回第一个不健康组件的报错。
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, nc := range m.components {
		if err := nc.c.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", nc.name, err)
		}
	}
	return nil
}

func (m *LifecycleManager) logInfo(msg string, fields ...zap.Field) {
	if m.log != nil {
		m.log.Info(msg, fields...)
	}
}

// httpServerComponent 托管一个 HTTP 监听（REST+WS 或指标端口）
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  **http.Server
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	srv := &http.Server{
		Addr:    h.addr,
		Handler: h.handler,
	}
	*h.server = srv

	go func() {
		h.logger.Info("http server listening",
			zap.String("component", h.name), zap.String("addr", h.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "listen",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || *h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := (*h.server).Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", h.name, err)
	}

	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("not started")
	}
	return nil
}
