package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStateMachine_Transitions 验证订单状态迁移表
func TestStateMachine_Transitions(t *testing.T) {
	sm := NewStateMachine()

	testCases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{name: "新建到已提交", from: StatusNew, to: StatusSubmitted, allowed: true},
		{name: "已提交到部分成交", from: StatusSubmitted, to: StatusPartial, allowed: true},
		{name: "已提交到完全成交", from: StatusSubmitted, to: StatusFilled, allowed: true},
		{name: "已提交到撤销", from: StatusSubmitted, to: StatusCanceled, allowed: true},
		{name: "部分成交可继续部分成交", from: StatusPartial, to: StatusPartial, allowed: true},
		{name: "部分成交到完全成交", from: StatusPartial, to: StatusFilled, allowed: true},
		{name: "部分成交可撤销剩余", from: StatusPartial, to: StatusCanceled, allowed: true},
		{name: "完全成交不可撤销", from: StatusFilled, to: StatusCanceled, allowed: false},
		{name: "撤销后不可成交", from: StatusCanceled, to: StatusFilled, allowed: false},
		{name: "拒绝为终态", from: StatusRejected, to: StatusSubmitted, allowed: false},
		{name: "不可跳过提交", from: StatusNew, to: StatusFilled, allowed: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := sm.ValidateTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			}
		})
	}
}

func TestStateMachineTerminal(t *testing.T) {
	sm := NewStateMachine()
	for _, st := range []Status{StatusFilled, StatusCanceled, StatusRejected} {
		assert.True(t, sm.IsTerminal(st), "expected %s terminal", st)
		assert.False(t, sm.CanFill(st), "expected %s not fillable", st)
	}
	for _, st := range []Status{StatusSubmitted, StatusPartial} {
		assert.False(t, sm.IsTerminal(st))
		assert.True(t, sm.CanFill(st))
	}
	assert.False(t, sm.CanFill(StatusNew))
}
