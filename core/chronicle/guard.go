package chronicle

import "errors"

// Action names one mutation kind that can be paused independently. The set
// is fixed; new action kinds get new named flags rather than subclassed
// permissions.
type Action string

const (
	// ActionUpdateLiquidity gates liquidity mutations.
	ActionUpdateLiquidity Action = "liquidity"
	// ActionUpdateData gates key/value mutations.
	ActionUpdateData Action = "data"
)

// ErrActionPaused rejects mutations while the relevant action flag is set.
var ErrActionPaused = errors.New("chronicle: action paused")

// PauseView reports the live pause state for an action. Implementations are
// queried on every mutating call and never cached, since the pause authority
// can flip a flag at any time.
type PauseView interface {
	IsPaused(action Action) bool
}

// Guard rejects the call when the action is paused. A nil view means no
// pause policy is wired and everything is allowed.
func Guard(p PauseView, action Action) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}
