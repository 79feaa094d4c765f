package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/internal/dispatcher"
	"github.com/worldsweep/extension/internal/handlers"
	"github.com/worldsweep/extension/internal/logging"
	intotel "github.com/worldsweep/extension/internal/otel"
	"github.com/worldsweep/extension/internal/report"
	"github.com/worldsweep/extension/internal/schedule"
	"github.com/worldsweep/extension/internal/worker"
	"github.com/worldsweep/extension/pkg/sweep"
	"github.com/worldsweep/extension/pkg/task"
	"github.com/worldsweep/extension/pkg/world"
)

// app is one fully wired extension stack: the same services a host
// process embeds, driven here against a synthetic world.
type app struct {
	sessionStart time.Time

	logs        *logging.Manager
	log         zerolog.Logger
	otel        *intotel.Provider
	metricsFile *os.File

	sinks      report.Sinks
	worker     *worker.Manager
	runner     *task.Runner
	sweeper    *sweep.Sweeper
	scheduler  *schedule.Scheduler
	dispatcher *dispatcher.Dispatcher
}

// newApp loads config and brings up logging, metrics, report sinks, the
// delivery worker, the sweeper with its schedule, and the command
// dispatcher, in that order. A missing config file is not fatal; the
// defaults stand in, the way the embedded extension behaves when the
// host ships without one.
func newApp(pop world.Population) (*app, error) {
	a := &app{sessionStart: time.Now().UTC()}

	cfgErr := config.Load(cfgDir)

	logCfg := config.GetLogging()
	logs, err := logging.New(logging.Options{
		Level:          logCfg.Level,
		Dir:            logCfg.Dir,
		ExtensionName:  ExtensionName,
		SessionStart:   a.sessionStart,
		GraylogEnabled: logCfg.Graylog.Enabled,
		GraylogAddress: logCfg.Graylog.Address,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	a.logs = logs
	a.log = logs.Logger()

	if cfgErr != nil {
		a.log.Warn().Err(cfgErr).Msg("Failed to load config, using defaults!")
	} else {
		a.log.Info().Msg("Loaded config")
	}
	if v := config.Version(); v < config.CurrentVersion {
		a.log.Warn().
			Int("fileVersion", v).
			Int("expected", config.CurrentVersion).
			Msg("Config file declares an older schema, defaults fill the gaps")
	}
	logs.RemoveOldLogs(14)

	otelCfg := config.GetOTel()
	if otelCfg.Enabled {
		path := filepath.Join(logCfg.Dir, fmt.Sprintf(
			"%s.metrics.%s.log", ExtensionName, a.sessionStart.Format("20060102_150405")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			a.log.Error().Err(err).Msg("Failed to create metrics file")
		} else {
			provider, err := intotel.New(intotel.Config{
				Enabled:       true,
				ServiceName:   otelCfg.ServiceName,
				Interval:      otelCfg.Interval,
				MetricsWriter: f,
			})
			if err != nil {
				f.Close()
				a.log.Error().Err(err).Msg("Failed to initialize OTel provider")
			} else {
				a.metricsFile = f
				a.otel = provider
				a.log.Info().Str("file", path).Msg("OTel provider initialized")
			}
		}
	}

	session := report.SessionInfo{
		Extension: ExtensionName,
		Version:   CurrentExtensionVersion,
		StartedAt: a.sessionStart,
	}
	backupPath := filepath.Join(logCfg.Dir, "influx_backup.log.gzip")
	a.sinks = report.NewSinks(config.GetReport(), session, backupPath, a.log)

	a.worker = worker.NewManager(a.sinks.All, a.log)
	a.worker.Start()

	a.runner = task.NewRunner(a.log)

	sweepCfg := config.GetSweep()
	sweeper, err := sweep.NewSweeper(sweep.Dependencies{
		Population: pop,
		Runner:     a.runner,
		Logger:     a.log,
		Reports:    a.worker,
		Config:     sweep.Config{Budget: sweepCfg.Budget},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("setting up sweeper: %w", err)
	}
	a.sweeper = sweeper
	a.scheduler = schedule.NewScheduler(sweeper, sweepCfg, a.log)

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.log))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("setting up dispatcher: %w", err)
	}
	a.dispatcher = d

	svc := handlers.NewService(handlers.Dependencies{
		Sweeper:          sweeper,
		History:          a.sinks.History,
		Scheduler:        a.scheduler,
		Runner:           a.runner,
		LogManager:       logs,
		ExtensionName:    ExtensionName,
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
	})
	svc.RegisterHandlers(d)

	return a, nil
}

// close tears the stack down in reverse dependency order: stop producing
// passes, cancel the one in flight, drain the dispatcher, flush reports to
// the sinks, then shut down telemetry and logging.
func (a *app) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.sweeper != nil {
		a.sweeper.Shutdown()
	}
	if a.runner != nil {
		a.runner.StopAll()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otel.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("OTel shutdown failed")
		}
		cancel()
	}
	if a.metricsFile != nil {
		a.metricsFile.Close()
	}
	if a.logs != nil {
		a.logs.Close()
	}
}
