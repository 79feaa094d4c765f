package main

import (
	"github.com/spf13/cobra"
)

var (
	// cfgDir is the directory searched for worldsweep.cfg.json.
	cfgDir string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "worldsweep",
	Short: "Orphaned held-entity cleanup for game-world populations",
	Long: `worldsweep scans a live object population for held entities whose
owning item chain no longer reaches them and reclaims the orphans, one
time slice per host tick so the simulation never stalls.

The extension core runs embedded in a host process. This binary drives
the identical stack against a synthetic host, for soak testing and for
inspecting pass reports without a game server.

Use "worldsweep [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", ".", "directory containing worldsweep.cfg.json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
