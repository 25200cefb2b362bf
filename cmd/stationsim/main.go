// Package main runs the derelict station simulation: survivors hold the
// station, explore its decks, and fight raids and scripted missions while
// the threat level climbs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/config"
	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/station"
	"github.com/cory-johannsen/derelict/internal/game/threat"
	"github.com/cory-johannsen/derelict/internal/game/world"
	"github.com/cory-johannsen/derelict/internal/mission"
	"github.com/cory-johannsen/derelict/internal/observability"
	"github.com/cory-johannsen/derelict/internal/scripting"
	"github.com/cory-johannsen/derelict/internal/server"
	"github.com/cory-johannsen/derelict/internal/storage/postgres"
)

const (
	healthInterval = 30 * time.Second
	saveTimeout    = 5 * time.Second
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	contentDir := flag.String("content", "", "content directory; overrides simulation.content_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *contentDir != "" {
		cfg.Simulation.ContentDir = *contentDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger, start); err != nil {
		logger.Fatal("station simulation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, start time.Time) error {
	subs := observability.Split(logger)
	sim := cfg.Simulation

	var src dice.Source
	if sim.Seed != 0 {
		src = dice.NewSeededSource(sim.Seed)
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, subs.Scripting)

	logger.Info("starting station simulation",
		zap.String("station", sim.StationID),
		zap.String("content", sim.ContentDir),
		zap.Duration("tick", sim.TickInterval),
		zap.Float64("time_scale", sim.TimeScale),
		zap.Bool("seeded", sim.Seed != 0),
	)

	// Content
	contentStart := time.Now()
	catalog, err := npc.LoadCatalog(sim.ContentDir)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	decks, err := world.LoadDecksFromDir(sim.DeckDir())
	if err != nil {
		return fmt.Errorf("loading decks: %w", err)
	}
	deckMgr, err := world.NewManager(decks)
	if err != nil {
		return fmt.Errorf("building deck map: %w", err)
	}
	logger.Info("content loaded",
		zap.Int("species", len(catalog.SpeciesOrder)),
		zap.Int("classes", len(catalog.ClassOrder)),
		zap.Int("conditions", catalog.Conditions.Len()),
		zap.Int("decks", len(decks)),
		zap.Int("locations", deckMgr.LocationCount()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	// Threat, optionally restored from PostgreSQL
	threatParams := cfg.Threat.Model()
	model := threat.NewModel(threatParams, src, time.Now(), subs.Threat)

	lc := server.NewLifecycle(subs.Lifecycle)

	var (
		threatRepo *postgres.ThreatRepository
		archive    *postgres.EncounterArchive
	)
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		threatRepo = postgres.NewThreatRepository(pool.DB(), sim.StationID)
		archive = postgres.NewEncounterArchive(pool.DB())

		state, err := threatRepo.Load(ctx)
		switch {
		case errors.Is(err, postgres.ErrThreatNotFound):
			logger.Info("no saved threat state, starting fresh")
		case err != nil:
			return fmt.Errorf("restoring threat: %w", err)
		default:
			model.Restore(state)
			logger.Info("threat restored",
				zap.Float64("threat", model.Value()),
				zap.Int("escalation", model.EscalationLevel()),
			)
		}
		lc.Add("database", &server.FuncService{StartFn: func(ctx context.Context) error {
			return watchHealth(ctx, pool, subs.Storage)
		}})
	}

	// Station and roster
	st := station.New(model, sim.Turrets, sim.Ammo, subs.Station)
	factory := npc.NewFactory(catalog, src, threatParams, subs.Station)
	for _, sc := range sim.Survivors {
		c, err := factory.GenerateSurvivor(sc.Name, sc.Class)
		if err != nil {
			return fmt.Errorf("generating survivor %q: %w", sc.Name, err)
		}
		if err := st.AddSurvivor(c); err != nil {
			return err
		}
		task, err := sc.ParsedTask()
		if err != nil {
			return err
		}
		if err := st.Assign(c.ID, task); err != nil {
			return err
		}
	}
	logger.Info("roster assembled", zap.Int("survivors", len(st.Roster())))

	// Encounters
	hostiles := npc.NewManager()
	policy := ai.NewPolicy(ai.DefaultRegistry(), cfg.Combat.AI(), src, subs.Encounter)
	collab := encounter.Collaborators{
		Rewards:   st,
		Locations: station.NewLocations(hostiles, subs.Station),
		Roster:    st,
		Base:      st,
		Threat:    st,
		Spawner:   station.NewFactorySpawner(factory, model, subs.Station),
		Armory:    st,
	}
	if archive != nil {
		collab.Archiver = archive
	}
	ctl := encounter.NewController(
		combat.NewResolver(cfg.Combat.Rules(), src, subs.Encounter),
		policy, src, cfg.Combat.Encounter(), collab, subs.Encounter,
	)

	// Missions
	scripts := scripting.NewManager(sim.InstructionLimit, roller, subs.Scripting)
	defer scripts.Close()
	if sim.ScriptDir != "" {
		n, err := scripts.LoadDir(sim.ScriptDir)
		if err != nil {
			return fmt.Errorf("loading missions: %w", err)
		}
		logger.Info("missions loaded", zap.Int("count", n), zap.Strings("missions", scripts.Missions()))
	}
	bridge := mission.NewBridge(mission.Deps{
		Scripts:    scripts,
		Factory:    factory,
		Station:    st,
		Threat:     model,
		Controller: ctl,
		Logger:     subs.Mission,
	})

	// World tick
	deps := station.Deps{
		Station:    st,
		Threat:     model,
		Factory:    factory,
		Controller: ctl,
		Decks:      deckMgr,
		Hostiles:   hostiles,
		Missions:   bridge,
		Src:        src,
		Logger:     subs.Station,
	}
	if sim.Autopilot {
		deps.Autopilot = station.NewAutopilot(ctl, policy, sim.MaxSteps, subs.Encounter)
	}
	if threatRepo != nil {
		deps.Store = threatRepo
	}
	simulation := station.NewSimulation(deps, sim.Params())
	seeded, err := simulation.SeedDecks()
	if err != nil {
		return err
	}
	logger.Info("decks seeded", zap.Int("hostiles", seeded))

	ticker := station.NewTicker(sim.TickInterval, simulation, reportTick(subs.Station), subs.Station)
	ticker.SetTimeScale(sim.TimeScale)
	lc.Add("ticker", &server.FuncService{StartFn: func(ctx context.Context) error {
		ticker.Start(ctx)
		<-ticker.Done()
		return nil
	}})

	logger.Info("station simulation ready", zap.Duration("startup", time.Since(start)))
	runErr := lc.Run(ctx)

	if threatRepo != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := threatRepo.Save(saveCtx, model.Snapshot()); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("saving final threat state: %w", err))
		}
	}
	logger.Info("station simulation stopped",
		zap.Float64("threat", model.Value()),
		zap.Int("integrity", st.Integrity()),
		zap.Int("raids_won", st.RaidsWon()),
		zap.Int("overruns", st.Overruns()),
		zap.Int("survivors", len(st.Roster())),
	)
	return runErr
}

// watchHealth pings the database until ctx ends, logging each failure.
func watchHealth(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) error {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := pool.Health(ctx, time.Second); err != nil && ctx.Err() == nil {
				logger.Warn("database health check failed", zap.Error(err))
			}
		}
	}
}

func reportTick(logger *zap.Logger) func(station.TickReport) {
	return func(rep station.TickReport) {
		fields := []zap.Field{
			zap.Int("tick", rep.Tick),
			zap.Float64("threat", rep.Threat),
			zap.Int("escalation", rep.Escalation),
		}
		switch {
		case rep.RaidBegun:
			logger.Info("raid", fields...)
		case rep.MissionBegun != "":
			logger.Info("mission", append(fields, zap.String("tag", rep.MissionBegun))...)
		case rep.FieldBegun != "":
			logger.Info("field encounter", append(fields, zap.String("location", rep.FieldBegun))...)
		case rep.Undefended != "":
			logger.Info("undefended location probed", append(fields, zap.String("location", rep.Undefended))...)
		default:
			logger.Debug("tick", fields...)
		}
		for _, r := range rep.Resolved {
			logger.Info("encounter resolved", append(fields, zap.Stringer("result", r))...)
		}
	}
}
