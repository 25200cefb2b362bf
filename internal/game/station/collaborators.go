package station

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/threat"
)

// Locations adapts an npc.Manager to the encounter controller's map
// collaborator.
type Locations struct {
	mgr    *npc.Manager
	logger *zap.Logger
}

// NewLocations wraps mgr.
//
// Precondition: mgr must be non-nil.
func NewLocations(mgr *npc.Manager, logger *zap.Logger) *Locations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locations{mgr: mgr, logger: logger}
}

// SeedLocation adds hostiles to locationID.
func (l *Locations) SeedLocation(locationID string, hostiles []*combat.Combatant) {
	if err := l.mgr.Seed(locationID, hostiles...); err != nil {
		l.logger.Error("seeding location", zap.String("location", locationID), zap.Error(err))
	}
}

// ResolveLocation applies a field encounter's outcome to locationID.
func (l *Locations) ResolveLocation(locationID string, d encounter.Disposition, survivors []*combat.Combatant) {
	switch d {
	case encounter.DispositionClear:
		l.mgr.Clear(locationID)
	case encounter.DispositionReseed:
		l.mgr.Clear(locationID)
		l.SeedLocation(locationID, survivors)
	case encounter.DispositionLeave:
		l.mgr.Prune(locationID)
	}
	l.logger.Debug("location resolved",
		zap.String("location", locationID),
		zap.Stringer("disposition", d),
		zap.Int("remaining", l.mgr.Count(locationID)),
	)
}

// FactorySpawner builds swarm offspring at the current threat.
type FactorySpawner struct {
	factory *npc.Factory
	model   *threat.Model
	logger  *zap.Logger
}

// NewFactorySpawner returns a Spawner backed by factory.
//
// Precondition: factory and model must be non-nil.
func NewFactorySpawner(factory *npc.Factory, model *threat.Model, logger *zap.Logger) *FactorySpawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FactorySpawner{factory: factory, model: model, logger: logger}
}

// Spawn returns the offspring of parent, or nil when it does not swarm.
func (s *FactorySpawner) Spawn(parent *combat.Combatant) []*combat.Combatant {
	out, err := s.factory.GenerateSwarm(parent, s.model.Value(), s.model.EscalationLevel())
	if err != nil {
		s.logger.Error("generating swarm", zap.String("parent", parent.ID), zap.Error(err))
		return nil
	}
	return out
}
