package command

import (
	"errors"
	"fmt"
	"time"
)

// Pipeline rejection errors, one per stage, so callers and tests can tell
// which gate refused an invocation.
var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrOnCooldown      = errors.New("command on cooldown")
	ErrBadArguments    = errors.New("bad arguments")
	ErrGroupOnly       = errors.New("command only available in groups")
	ErrQuotedRequired  = errors.New("command requires a quoted message")
	ErrBudgetExhausted = errors.New("request budget exhausted")
)

// CooldownError wraps ErrOnCooldown with the remaining wait.
type CooldownError struct {
	Command   string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command %q on cooldown for %s", e.Command, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }
