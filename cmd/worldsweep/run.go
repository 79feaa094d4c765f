package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/internal/dispatcher"
)

var (
	tickInterval time.Duration
	churnEvery   int
	demoSeed     int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extension against a churning synthetic world",
	Long: `Run brings up the full extension stack and drives it with simulated
host ticks. The synthetic world mutates between ticks so scheduled
passes always find fresh orphans.

Commands are read from stdin in host call format, for example:

  :SWEEP:RUN:
  :SWEEP:STATUS:
  :SWEEP:BUDGET:|8
  :SWEEP:HISTORY:|5

Stop with Ctrl+C; reports buffered for delivery are flushed on the way
out.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&tickInterval, "tick", 50*time.Millisecond, "simulated host frame interval")
	runCmd.Flags().IntVar(&churnEvery, "churn-every", 40, "ticks between world mutation rounds")
	runCmd.Flags().Int64Var(&demoSeed, "seed", 1, "world generation seed")
}

func runRun(cmd *cobra.Command, args []string) error {
	if churnEvery < 1 {
		return fmt.Errorf("churn-every must be at least 1")
	}

	w := newDemoWorld(demoSeed)
	a, err := newApp(w)
	if err != nil {
		return err
	}
	defer a.close()

	config.OnReload(func(file string) {
		if err := config.Validate(); err != nil {
			a.log.Warn().Err(err).Str("file", file).Msg("Ignoring invalid config change")
			return
		}
		a.sweeper.SetBudget(config.GetSweep().Budget)
		a.log.Info().Str("file", file).Msg("Config reloaded")
	})

	if config.GetSweep().AutoClean {
		a.scheduler.Start()
	}

	a.log.Info().
		Int64("seed", demoSeed).
		Dur("tick", tickInterval).
		Int("entities", w.Len()).
		Msg("Synthetic host running, commands on stdin, Ctrl+C to stop")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	lines := consoleLines()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ticker.C:
			tick++
			if tick%churnEvery == 0 {
				w.churn()
			}
			a.dispatcher.Dispatch(dispatcher.Event{Command: ":TICK:", Timestamp: time.Now()})
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep ticking until a signal arrives
				lines = nil
				continue
			}
			if reply := dispatchLine(a.dispatcher, line); reply != "" {
				fmt.Println(reply)
			}
		case <-sigs:
			a.log.Info().Int("ticks", tick).Msg("Shutting down")
			return nil
		}
	}
}
