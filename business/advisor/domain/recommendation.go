// Package domain contains the decision types for the advisor context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is what the user should do with the trade.
type Action string

const (
	ActionExecuteNow Action = "execute_now"
	ActionWait       Action = "wait"
	ActionUseBridge  Action = "use_bridge"
)

// String returns a human-readable description of the action.
func (a Action) String() string {
	switch a {
	case ActionExecuteNow:
		return "Execute now"
	case ActionWait:
		return "Wait for cheaper gas"
	case ActionUseBridge:
		return "Use a bridge"
	default:
		return "Unknown"
	}
}

// ExecutionMode describes how the optimal route is carried out.
type ExecutionMode string

const (
	ModeImmediate ExecutionMode = "immediate"
	ModeDelayed   ExecutionMode = "delayed"
	ModeBridge    ExecutionMode = "bridge"
)

// RouteSummary is one priced way of executing the trade.
type RouteSummary struct {
	Provider string
	CostUSD  decimal.Decimal
	// GasUnits is zero for bridge routes, whose cost is quoted whole.
	GasUnits      uint64
	ExecutionMode ExecutionMode
	// Delay is the wait before execution (delayed) or the transfer time (bridge).
	Delay time.Duration
}

// Recommendation is the outcome of one analysis.
type Recommendation struct {
	AnalysisID     string
	Action         Action
	SavingsUSD     decimal.Decimal
	SavingsPercent decimal.Decimal
	// Confidence is in [0,1].
	Confidence float64
	// WaitTimeSeconds is set only for ActionWait.
	WaitTimeSeconds int
	CurrentRoute    RouteSummary
	OptimalRoute    RouteSummary
	GeneratedAt     time.Time
}
