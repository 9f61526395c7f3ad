package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/bot"
	"github.com/DoyleJ11/yahtzee-backend/internal/transport"
)

type Config struct {
	host    string
	port    int
	seed    uint64
	verbose bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("YAHTZEE_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "yahtzee-client",
		Short: "Plays one game against a yahtzee-server.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return play(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.host, "host", "H", "localhost", "server to connect to (env: YAHTZEE_CLIENT_HOST)")
	fs.IntVarP(&cfg.port, "port", "p", 11111, "server port (env: YAHTZEE_CLIENT_PORT)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "dice seed, 0 for random (env: YAHTZEE_CLIENT_SEED)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every roll and claim (env: YAHTZEE_CLIENT_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func play(ctx context.Context, cfg *Config) error {
	zc := zap.NewDevelopmentConfig()
	if !cfg.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := zc.Build()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	addr := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
	d := net.Dialer{Timeout: 10 * time.Second}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	conn := transport.NewTCPConn(c, 5*time.Second)
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	res, err := bot.New(conn, cfg.seed, log).Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case res.Winner == 0:
		fmt.Println("game over: nobody left at the table")
	case res.Won():
		fmt.Printf("player %d won with %d points\n", res.PlayerID, res.Score)
	default:
		fmt.Printf("player %d finished with %d points; player %d won\n", res.PlayerID, res.Score, res.Winner)
	}
	return nil
}
