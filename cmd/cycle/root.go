package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pipelined.dev/cycle/config"
	"pipelined.dev/cycle/log"
)

// app holds state shared by subcommands. It's populated before any
// subcommand runs.
type app struct {
	v      *viper.Viper
	config *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	root := &cobra.Command{
		Use:   "cycle",
		Short: "Cycle-driven audio pipelines",
		Long: `Cycle runs capture and process pipelines on a cooperative scheduler.
Settings come from an optional config file and CYCLE_ prefixed
environment variables, e.g. CYCLE_BUFFER_SIZE or CYCLE_LOG_LEVEL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (yaml, toml or json)")
	flags.String("strategy", "", "execution strategy: phased or streaming")
	flags.Int("buffer-size", 0, "frames per buffer cycle")
	flags.String("log-level", "", "log level")
	_ = a.v.BindPFlag("strategy", flags.Lookup("strategy"))
	_ = a.v.BindPFlag("buffer_size", flags.Lookup("buffer-size"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newProcessCmd(a),
		newConfigCmd(a),
	)
	return root
}

// init reads the config file and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	c, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	logger, err := log.New(c.Log.Level, c.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.config, a.logger = c, logger
	return nil
}
