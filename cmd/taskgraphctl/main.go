// Command taskgraphctl is the operator-facing front end for the
// taskgraph scheduler: a scripted demo, a benchmark runner, and a
// cron-driven ready-set watcher.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/swarmguard/taskgraph/internal/obslog"
)

var rootCmd = &cobra.Command{
	Use:   "taskgraphctl",
	Short: "Operate an incremental task scheduler built on a dynamic topological sort.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		os.Setenv("TASKGRAPH_LOG_LEVEL", viper.GetString("log-level"))
		obslog.Init("taskgraphctl")
		return nil
	},
}

func init() {
	viper.SetDefault("priority-inheritance", true)
	viper.SetDefault("inheritance-depth", 10)
	viper.SetDefault("aging-threshold", 7*24*time.Hour)
	viper.SetDefault("aging-boost", 1)
	viper.SetDefault("ready-cache-ttl", 0)
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().Bool("priority-inheritance", true, "enable downstream priority inheritance")
	rootCmd.PersistentFlags().Int("inheritance-depth", 10, "BFS depth bound for priority inheritance")
	rootCmd.PersistentFlags().Duration("aging-threshold", 7*24*time.Hour, "task age before the one-shot aging boost applies")
	rootCmd.PersistentFlags().Int("aging-boost", 1, "priority levels to strengthen an aged task by")
	rootCmd.PersistentFlags().Duration("ready-cache-ttl", 0, "forced ready-set rebuild interval (0 disables)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn, or error")

	for _, name := range []string{"priority-inheritance", "inheritance-depth", "aging-threshold", "aging-boost", "ready-cache-ttl", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("taskgraph")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(demoCmd, benchCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
