package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "0.3.0"

type Config struct {
	bind         string
	games        int
	httpPort     int
	maxTables    int
	players      int
	port         int
	traceDSN     string
	verbose      bool
	writeTimeout time.Duration
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.httpPort < 0 || c.httpPort > 65535 {
		return fmt.Errorf("invalid http port (must be between 0-65535 inclusive): %d", c.httpPort)
	}
	if c.httpPort == c.port {
		return errors.New("--port and --http-port must differ")
	}
	if c.players < 1 {
		return fmt.Errorf("a table needs at least one player, got %d", c.players)
	}
	if c.maxTables < 0 || c.games < 0 {
		return errors.New("--max-tables and --games cannot be negative")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("YAHTZEE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "yahtzee-server",
		Short:         "Hosts multiplayer dice-scoring games over a line protocol.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: YAHTZEE_BIND)")
	fs.IntVar(&cfg.games, "games", 1, "games to host before exiting, 0 for no limit (env: YAHTZEE_GAMES)")
	fs.IntVar(&cfg.httpPort, "http-port", 8080, "port for the status API, 0 to disable (env: YAHTZEE_HTTP_PORT)")
	fs.IntVar(&cfg.maxTables, "max-tables", 0, "tables running at once, 0 for no limit (env: YAHTZEE_MAX_TABLES)")
	fs.IntVarP(&cfg.players, "players", "n", 2, "players needed to start a game (env: YAHTZEE_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 11111, "port for game clients (env: YAHTZEE_PORT)")
	fs.StringVar(&cfg.traceDSN, "trace-dsn", "", "record games to sqlite:<path> or postgres://... (env: YAHTZEE_TRACE_DSN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: YAHTZEE_VERBOSE)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", 5*time.Second, "time allowed for one write to a client (env: YAHTZEE_WRITE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("yahtzee-server v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
