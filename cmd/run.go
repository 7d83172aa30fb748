package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentq/internal/api"
	"agentq/internal/cli"
	"agentq/internal/logging"
	"agentq/internal/metrics"
	"agentq/internal/runner"
	"agentq/internal/script"
)

var errNoScript = errors.New("--script is required")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test headless",
	Example: `  agentq run -s testcases.xml -a 20 -i 500 -r 10 -d 120
  agentq run -s cases.yaml --log-responses --listen :9100`,
	RunE: runHeadless,
}

func init() {
	runCmd.Flags().String("listen", "", "Serve the control API and /metrics on this address")
	runCmd.Flags().String("log-level", "info", "Engine log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Write engine logs as JSON instead of console text")
	for _, key := range []string{"listen", "log-level", "log-json"} {
		cobra.CheckErr(viper.BindPFlag(key, runCmd.Flags().Lookup(key)))
	}
}

func runHeadless(cmd *cobra.Command, _ []string) error {
	cfg, err := configFrom(viper.GetViper())
	if err != nil {
		return err
	}
	path := viper.GetString("script")
	if path == "" {
		return errNoScript
	}
	specs, err := script.LoadFile(path)
	if err != nil {
		return err
	}

	log := logging.New(cmd.ErrOrStderr(), viper.GetString("log-level"), !viper.GetBool("log-json"))
	mgr, err := runner.NewManager(cfg, runner.WithLogger(log))
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := mgr.AddRequest(spec); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := viper.GetString("listen"); addr != "" {
		srv := api.NewServer(addr, mgr, metrics.NewRegistry(mgr), log)
		if _, err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("api shutdown")
			}
		}()
	}

	return cli.Run(ctx, mgr, cli.Options{
		Out:      cmd.OutOrStdout(),
		Script:   path,
		Refresh:  time.Second,
		HostLoad: true,
	})
}
