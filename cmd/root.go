package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentq/internal/banner"
	"agentq/internal/runner"
	"agentq/internal/tui/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentq",
	Short: "agentq - concurrent HTTP load generator",
	Long: `
agentq drives a population of agents through a script of HTTP requests and
reports latency, throughput and errors while the test runs.

Modes:
1. TUI Mode (Default): interactive terminal UI
2. Headless (agentq run): progress line and summary, for CI usage`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd, reportCmd, dummyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentq.yaml)")
	pf.IntP("agents", "a", 1, "Number of concurrent agents")
	pf.IntP("interval", "i", 0, "Pacing interval in milliseconds")
	pf.IntP("rampup", "r", 0, "Ramp-up in seconds; agent starts are spread over it")
	pf.IntP("duration", "d", 60, "Test duration in seconds (0 runs until interrupted)")
	pf.StringP("script", "s", "", "Test script (.xml, .yaml or .yml)")
	pf.String("pacing", string(runner.PacePerPass), "Pacing granularity: pass or request")
	pf.Bool("log-responses", false, "Log every response to the results directory")
	pf.String("results-dir", "results", "Directory for logged results")
	pf.Int("timeout", 30, "Request timeout in seconds")
	pf.Bool("verbatim", false, "Send scripts as written; do not expand {{...}} placeholders")
	bindFlags(rootCmd)
}

// bindFlags exposes every persistent flag as a viper key of the same name.
func bindFlags(cmd *cobra.Command) {
	for _, key := range []string{
		"agents", "interval", "rampup", "duration", "script", "pacing",
		"log-responses", "results-dir", "timeout", "verbatim",
	} {
		cobra.CheckErr(viper.BindPFlag(key, cmd.PersistentFlags().Lookup(key)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".agentq")
		}
	}
	viper.SetEnvPrefix("agentq")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// configFrom builds the engine config from viper keys.
func configFrom(v *viper.Viper) (runner.Config, error) {
	mode, err := runner.ParsePacingMode(v.GetString("pacing"))
	if err != nil {
		return runner.Config{}, err
	}
	cfg := runner.Config{
		Agents:       v.GetInt("agents"),
		Pacing:       time.Duration(v.GetInt("interval")) * time.Millisecond,
		PacingMode:   mode,
		RampUp:       time.Duration(v.GetInt("rampup")) * time.Second,
		Duration:     time.Duration(v.GetInt("duration")) * time.Second,
		LogResponses: v.GetBool("log-responses"),
		ResultsDir:   v.GetString("results-dir"),
		Timeout:      time.Duration(v.GetInt("timeout")) * time.Second,
		Verbatim:     v.GetBool("verbatim"),
	}
	return cfg, cfg.Validate()
}

// --- Runners ---

func runTUI() error {
	cfg, err := configFrom(viper.GetViper())
	if err != nil {
		return err
	}

	// engine logs stay discarded; they would draw over the screen
	m := app.NewModel(cfg, viper.GetString("script"), nil)
	p := tea.NewProgram(m, tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running agentq: %w", err)
	}
	if fm, ok := final.(app.Model); ok && fm.Manager != nil {
		if err := fm.Manager.Stop(); err != nil {
			return err
		}
		if fm.Manager.Config().LogResponses && fm.Manager.RunID() != "" {
			fmt.Printf("💾 Results saved under %s\n", fm.Manager.Config().ResultsDir)
		}
	}
	return nil
}
