package order

import "fmt"

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机，登记所有合法的状态转换。
type StateMachine struct {
	transitions map[StateTransition]bool
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[StateTransition]bool)}

	legalTransitions := []StateTransition{
		// 提交后立即确认（模拟券商回执）
		{StatusNew, StatusSubmitted},
		{StatusNew, StatusRejected},

		// 从SUBMITTED可以转到
		{StatusSubmitted, StatusPartial},
		{StatusSubmitted, StatusFilled},
		{StatusSubmitted, StatusCanceled},
		{StatusSubmitted, StatusRejected},

		// 从PARTIAL可以转到
		{StatusPartial, StatusPartial}, // 多次部分成交
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCanceled},

		// 终态不能转换（FILLED, CANCELED, REJECTED）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
	return sm
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if sm.transitions[StateTransition{From: from, To: to}] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsTerminal 判断是否是终态
func (sm *StateMachine) IsTerminal(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// CanFill 判断当前状态下能否接受成交
func (sm *StateMachine) CanFill(status Status) bool {
	return status == StatusSubmitted || status == StatusPartial
}

// CanCancel 判断当前状态下是否可以撤单
func (sm *StateMachine) CanCancel(status Status) bool {
	switch status {
	case StatusNew, StatusSubmitted, StatusPartial:
		return true
	default:
		return false
	}
}
