package campaign

import "errors"

// Sentinel errors for the Campaign Store / Orchestrator (§4.4, §4.8).
var (
	ErrNotFound           = errors.New("campaign: not found")
	ErrInvalidTransition  = errors.New("campaign: invalid status transition")
	ErrDeleteWhileRunning = errors.New("campaign: cannot delete a running campaign")
	ErrLockHeld           = errors.New("campaign: another transition is already in progress")
)
