package station

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
)

// DefaultMaxSteps bounds how many party actions the autopilot submits to one
// encounter.
const DefaultMaxSteps = 500

// ErrStepLimit is returned when an encounter is still pending after the
// autopilot's step budget.
var ErrStepLimit = errors.New("autopilot step limit reached")

// Autopilot plays the party side of an encounter with the targeting policy,
// for headless runs.
type Autopilot struct {
	controller *encounter.Controller
	policy     *ai.Policy
	maxSteps   int
	logger     *zap.Logger
}

// NewAutopilot creates an Autopilot. maxSteps < 1 means DefaultMaxSteps.
//
// Precondition: controller and policy must be non-nil.
func NewAutopilot(controller *encounter.Controller, policy *ai.Policy, maxSteps int, logger *zap.Logger) *Autopilot {
	if controller == nil || policy == nil {
		panic("station.NewAutopilot: controller and policy must not be nil")
	}
	if maxSteps < 1 {
		maxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autopilot{controller: controller, policy: policy, maxSteps: maxSteps, logger: logger}
}

// Run submits a policy-chosen action for every party turn until enc resolves.
//
// Postcondition: on nil error the returned Result is not ResultPending.
// ctx cancellation and an exhausted step budget leave enc pending.
func (a *Autopilot) Run(ctx context.Context, enc *encounter.Encounter) (encounter.Result, error) {
	for step := 0; step < a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return encounter.ResultPending, err
		}
		st := a.controller.Snapshot(enc)
		if st.Phase == encounter.PhaseResolved {
			a.logger.Debug("autopilot finished",
				zap.String("encounter_id", st.ID),
				zap.Int("steps", step),
				zap.Stringer("outcome", st.Result),
			)
			return st.Result, nil
		}
		party, hostiles := a.controller.Combatants(enc)
		actor := byID(party, st.ActiveID)
		if actor == nil {
			return encounter.ResultPending, fmt.Errorf("encounter %s: no party member awaiting an action", st.ID)
		}
		act := a.policy.Decide(actor, party, hostiles)
		if err := a.controller.Submit(enc, act); err != nil {
			return encounter.ResultPending, fmt.Errorf("submitting %s for %s: %w", act.Type, actor.ID, err)
		}
	}
	if st := a.controller.Snapshot(enc); st.Phase == encounter.PhaseResolved {
		return st.Result, nil
	}
	return encounter.ResultPending, ErrStepLimit
}

func byID(cs []*combat.Combatant, id string) *combat.Combatant {
	for _, c := range cs {
		if c.ID == id {
			return c
		}
	}
	return nil
}
