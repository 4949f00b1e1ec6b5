package main

import "github.com/rxtech-lab/argo-backfill/internal/types"

// EngineStartedMsg signals that the engine goroutine has been launched.
type EngineStartedMsg struct{}

// StateChangedMsg carries an engine state transition.
type StateChangedMsg struct {
	Old types.EngineState
	New types.EngineState
}

// TaskCompletedMsg carries the outcome of one finished chunk task.
type TaskCompletedMsg struct {
	Task    types.BackfillTask
	Candles int
	Err     error
}

// PassCompletedMsg carries the stats snapshot taken after a progressive pass.
type PassCompletedMsg struct {
	Stats types.BackfillStats
}

// LatestUpdatedMsg reports the result of a manual latest-candle refresh.
type LatestUpdatedMsg struct {
	Symbol string
	Err    error
}

// EngineErrorMsg indicates the engine failed to start.
type EngineErrorMsg struct {
	Err error
}

// StatsTickMsg requests a fresh stats snapshot from the engine.
type StatsTickMsg struct{}
