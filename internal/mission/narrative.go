// Package mission connects Lua mission scripts to the encounter engine: it
// starts mission encounters on a script's behalf and reports their outcome
// back through the script's resolution hooks.
package mission

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/scripting"
)

// Hook names a mission script may define.
const (
	HookWin        = "on_win"
	HookLoss       = "on_loss"
	HookRetreat    = "on_retreat"
	HookSubstitute = "substitute_roster"
	HookPoll       = "poll"
)

// ErrAlreadyResolved is returned when a narrative is told an outcome twice.
var ErrAlreadyResolved = errors.New("mission: narrative already resolved")

// MissionOf returns the mission id a tag belongs to: the text before the
// first '/', or the whole tag.
func MissionOf(tag string) string {
	id, _, _ := strings.Cut(tag, "/")
	return id
}

// LuaNarrative resumes a mission script when its encounter resolves. Exactly
// one of OnWin, OnLoss, or OnRetreat may be called per narrative.
type LuaNarrative struct {
	scripts   *scripting.Manager
	missionID string
	logger    *zap.Logger

	mu       sync.Mutex
	resolved bool
	outcome  string
	next     string
}

// NewLuaNarrative returns a narrative bound to missionID's VM.
//
// Precondition: scripts must be non-nil.
func NewLuaNarrative(scripts *scripting.Manager, missionID string, logger *zap.Logger) *LuaNarrative {
	if scripts == nil {
		panic("mission.NewLuaNarrative: scripts must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LuaNarrative{scripts: scripts, missionID: missionID, logger: logger}
}

func (n *LuaNarrative) OnWin(tag string) error     { return n.resume(HookWin, tag) }
func (n *LuaNarrative) OnLoss(tag string) error    { return n.resume(HookLoss, tag) }
func (n *LuaNarrative) OnRetreat(tag string) error { return n.resume(HookRetreat, tag) }

// Outcome returns the hook that resolved the narrative, or "" while pending.
func (n *LuaNarrative) Outcome() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.outcome
}

// Next returns the follow-up tag the resolving hook returned, if any.
func (n *LuaNarrative) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}

func (n *LuaNarrative) resume(hook, tag string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resolved {
		return fmt.Errorf("%w: %s after %s", ErrAlreadyResolved, hook, n.outcome)
	}
	n.resolved = true
	n.outcome = hook

	ret, err := n.scripts.CallHook(n.missionID, hook, lua.LString(tag))
	if err != nil {
		return fmt.Errorf("resuming mission %q: %w", n.missionID, err)
	}
	if s, ok := ret.(lua.LString); ok {
		n.next = string(s)
	}
	n.logger.Info("mission resumed",
		zap.String("mission", n.missionID),
		zap.String("tag", tag),
		zap.String("hook", hook),
		zap.String("next", n.next),
	)
	return nil
}
