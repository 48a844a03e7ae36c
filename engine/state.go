package engine

import (
	"fmt"
	"sync"
)

// State 单市场管道状态
type State string

const (
	StateIdle            State = "IDLE"
	StateCalculating     State = "CALCULATING_FAIR_VALUE"
	StateDetecting       State = "DETECTING_SIGNAL"
	StateChoosingOrder   State = "CHOOSING_ORDER_TYPE"
	StateTakerOrder      State = "TAKER_ORDER"
	StateMakerOrder      State = "MAKER_ORDER"
	StateAwaitingFill    State = "AWAITING_FILL"
	StatePositionOpen    State = "POSITION_OPEN"
	StateSettled         State = "SETTLED"
	StateEarlyExit       State = "EARLY_EXIT"
	StateUpdatingBalance State = "UPDATING_BANKROLL"
)

// StateTransition 状态转换
type StateTransition struct {
	From State
	To   State
}

// StateMachine 管道状态机：一个活跃市场一个实例，转换链对每个触发事件
// 同步执行到底，单市场内不乱序。
type StateMachine struct {
	transitions map[StateTransition]bool
	mu          sync.RWMutex
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

// initializeTransitions 初始化所有合法的状态转换
func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// 行情事件触发计算
		{StateIdle, StateCalculating},

		// 计算阶段：波动率未就绪/盘口缺失退回 Idle
		{StateCalculating, StateDetecting},
		{StateCalculating, StateIdle},

		// 检测阶段：被过滤链拒绝退回 Idle
		{StateDetecting, StateChoosingOrder},
		{StateDetecting, StateIdle},

		// 订单类型选择：edge 不足或风控/仓位不过退回 Idle
		{StateChoosingOrder, StateTakerOrder},
		{StateChoosingOrder, StateMakerOrder},
		{StateChoosingOrder, StateIdle},

		// 提交前风控复查不过退回 Idle
		{StateTakerOrder, StateAwaitingFill},
		{StateTakerOrder, StateIdle},
		{StateMakerOrder, StateAwaitingFill},
		{StateMakerOrder, StateIdle},

		// 等待成交：零成交取消退回 Idle
		{StateAwaitingFill, StatePositionOpen},
		{StateAwaitingFill, StateIdle},

		// 持仓期间继续响应行情（不重入开仓）
		{StatePositionOpen, StateSettled},
		{StatePositionOpen, StateEarlyExit},

		{StateSettled, StateUpdatingBalance},
		{StateEarlyExit, StateUpdatingBalance},
		{StateUpdatingBalance, StateIdle},
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to State) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	// 相同状态允许（幂等性）
	if from == to {
		return nil
	}
	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// AllowedTransitions 返回当前状态所有合法的目标状态
func (sm *StateMachine) AllowedTransitions(current State) []State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	allowed := make([]State, 0)
	for t := range sm.transitions {
		if t.From == current {
			allowed = append(allowed, t.To)
		}
	}
	return allowed
}

// CanSubmit 当前状态下是否允许发起新订单。
func (sm *StateMachine) CanSubmit(s State) bool {
	return s == StateTakerOrder || s == StateMakerOrder
}
