package container

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent 记录启停动作，可注入启动失败和不健康状态
type fakeComponent struct {
	name     string
	startErr error
	health   error
	events   *[]string
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeComponent) Stop() error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func (f *fakeComponent) Health() error { return f.health }

func TestLifecycleStartStopOrder(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register("hub", &fakeComponent{name: "hub", events: &events})
	m.Register("api", &fakeComponent{name: "api", events: &events})
	m.Register("metrics", &fakeComponent{name: "metrics", events: &events})

	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StopAll())

	// 正序启动，逆序停止
	assert.Equal(t, []string{
		"start:hub", "start:api", "start:metrics",
		"stop:metrics", "stop:api", "stop:hub",
	}, events)
}

// TestLifecycleStartRollback 中途启动失败时回滚已启动的组件
func TestLifecycleStartRollback(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register("hub", &fakeComponent{name: "hub", events: &events})
	m.Register("api", &fakeComponent{name: "api", startErr: errors.New("port in use"), events: &events})
	m.Register("metrics", &fakeComponent{name: "metrics", events: &events})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start api failed")

	// hub 被回滚，metrics 从未启动
	assert.Equal(t, []string{"start:hub", "stop:hub"}, events)
}

// TestLifecycleHealthNames 健康检查报错必须指明是哪个组件
func TestLifecycleHealthNames(t *testing.T) {
	var events []string
	m := NewLifecycleManager()
	m.Register("hub", &fakeComponent{name: "hub", events: &events})
	m.Register("api", &fakeComponent{name: "api", health: errors.New("not started"), events: &events})

	err := m.CheckHealth()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api unhealthy")
}
