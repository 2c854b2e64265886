package models

import "slices"

// ActionState is a progress label emitted by an action. States of one action kind only move forward.
type ActionState string

const (
	StateInit            ActionState = "init"
	StateSwitch          ActionState = "switch"
	StateApprove         ActionState = "approve"
	StateApproveDone     ActionState = "approveDone"
	StateTransfer        ActionState = "transfer"
	StateTransferDone    ActionState = "transferDone"
	StateReceived        ActionState = "received"
	StateApproveWrap     ActionState = "approveWrap"
	StateApproveWrapDone ActionState = "approveWrapDone"
	StateWrap            ActionState = "wrap"
	StateWrapDone        ActionState = "wrapDone"
	StateUnwrap          ActionState = "unwrap"
	StateUnwrapDone      ActionState = "unwrapDone"
	StateUnlock          ActionState = "unlock"
	StateUnlockDone      ActionState = "unlockDone"
)

var (
	TransferStates = []ActionState{
		StateInit, StateSwitch, StateApprove, StateApproveDone,
		StateTransfer, StateTransferDone, StateReceived,
	}
	WrapStates   = []ActionState{StateInit, StateApproveWrap, StateApproveWrapDone, StateWrap, StateWrapDone}
	UnwrapStates = []ActionState{StateInit, StateUnwrap, StateUnwrapDone}
	UnlockStates = []ActionState{StateInit, StateUnlock, StateUnlockDone}
)

// IsTerminal reports whether the state closes a stage and therefore carries a transaction hash.
func (s ActionState) IsTerminal() bool {
	switch s {
	case StateApproveDone, StateTransferDone, StateReceived,
		StateApproveWrapDone, StateWrapDone, StateUnwrapDone, StateUnlockDone:
		return true
	}
	return false
}

// StatesFor returns the ordered state set of an action type.
func StatesFor(t ActionType) []ActionState {
	switch t {
	case ActionWrap:
		return WrapStates
	case ActionUnwrap:
		return UnwrapStates
	case ActionUnlock:
		return UnlockStates
	default:
		return TransferStates
	}
}

// Advances reports whether moving from prev to next respects the ordering of the state set.
// Repeating a state (e.g. switch before approve and again before transfer) is allowed.
func Advances(states []ActionState, prev, next ActionState) bool {
	i, j := slices.Index(states, prev), slices.Index(states, next)
	if i < 0 || j < 0 {
		return false
	}
	return j >= i || next == StateSwitch
}
