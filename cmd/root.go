package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leakcheck/internal/banner"
	"leakcheck/internal/cli"
	"leakcheck/internal/export"
	"leakcheck/internal/orchestrator"
	"leakcheck/internal/runner"
	"leakcheck/internal/tui"
)

const (
	ExitError           = 1
	ExitUnexpectedClaim = 3
)

// errExpectations is returned in --strict mode when a path did not behave as expected.
var errExpectations = errors.New("isolation expectations not met")

var cfgFile string

// flag key -> environment variable
var envKeys = map[string]string{
	"url":         "TEST_URL",
	"duration":    "DURATION",
	"rate":        "MAX_RPS",
	"delay":       "DELAY",
	"safe-path":   "SAFE_PATH",
	"unsafe-path": "UNSAFE_PATH",
	"timeout":     "TIMEOUT",
}

var rootCmd = &cobra.Command{
	Use:   "leakcheck",
	Short: "leakcheck - request isolation load test",
	Long: `
leakcheck drives overlapping requests at a safe and an unsafe route of the same
service and looks for request ids that show up in more than one response.

The safe route is expected to stay isolated, the unsafe route to leak.
Configuration comes from flags, the environment (TEST_URL, DURATION, MAX_RPS,
DELAY), a .env file or a YAML config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTest,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errExpectations) {
			fmt.Fprintln(os.Stderr, "\n"+err.Error())
			os.Exit(ExitUnexpectedClaim)
		}
		fmt.Fprintln(os.Stderr, "Test failed:", err)
		os.Exit(ExitError)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leakcheck.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "structured debug logging to stderr")

	addRunFlags(rootCmd.Flags())
	bindRunFlags(rootCmd.Flags())
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func addRunFlags(f *pflag.FlagSet) {
	def := runner.DefaultConfig()
	f.StringP("url", "u", def.BaseURL, "Target base URL")
	f.IntP("duration", "d", def.DurationSec, "Test duration per path in seconds")
	f.IntP("rate", "r", def.PeakRPS, "Peak request rate (requests/second)")
	f.Int("delay", def.DelayMs, "Server-side delay per request in ms")
	f.String("safe-path", def.SafePath, "Route expected to stay isolated")
	f.String("unsafe-path", def.UnsafePath, "Route expected to leak")
	f.Int("timeout", 0, "Per-request timeout in seconds (0 = none)")
	f.StringP("output", "o", "text", "Output format: text, json")
	f.Bool("tui", false, "Show the live dashboard instead of the progress line")
	f.Bool("insecure", false, "Skip TLS certificate verification")
	f.Bool("strict", false, "Exit with status 3 when a path does not behave as expected")
	f.String("export", "", "Write every probe outcome to this file (.csv or .json)")
}

// bindRunFlags lets viper resolve each setting as flag, then env, then config file, then default.
func bindRunFlags(f *pflag.FlagSet) {
	for key, env := range envKeys {
		viper.BindPFlag(key, f.Lookup(key))
		viper.BindEnv(key, env)
	}
	viper.BindPFlag("insecure", f.Lookup("insecure"))
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".leakcheck")
		}
	}
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func loadConfig() (runner.Config, error) {
	cfg := runner.Config{
		BaseURL:    viper.GetString("url"),
		SafePath:   viper.GetString("safe-path"),
		UnsafePath: viper.GetString("unsafe-path"),
		Insecure:   viper.GetBool("insecure"),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"duration", &cfg.DurationSec},
		{"rate", &cfg.PeakRPS},
		{"delay", &cfg.DelayMs},
		{"timeout", &cfg.TimeoutSec},
	}
	for _, f := range ints {
		raw := viper.Get(f.key)
		n, err := cast.ToIntE(raw)
		if err != nil {
			return runner.Config{}, fmt.Errorf("%s (%s) must be a whole number, got %q", f.key, envKeys[f.key], fmt.Sprint(raw))
		}
		*f.dst = n
	}
	return cfg, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runTest(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("--output must be 'text' or 'json', got %q", output)
	}
	useTUI, _ := cmd.Flags().GetBool("tui")
	strict, _ := cmd.Flags().GetBool("strict")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// zap output would tear the alt screen.
	logger, err := newLogger(viper.GetBool("verbose") && !useTUI)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cmp *orchestrator.Comparison
	if useTUI {
		cmp, err = tui.Run(ctx, cfg, logger)
		if err == nil && output == "json" {
			err = cli.PrintJSON(os.Stdout, cmp)
		}
	} else {
		cmp, err = cli.Start(ctx, cfg, cli.Options{Output: output, Logger: logger})
	}
	if err != nil {
		return err
	}

	if file, _ := cmd.Flags().GetString("export"); file != "" {
		if err := exportOutcomes(cmp, file); err != nil {
			return fmt.Errorf("exporting outcomes: %w", err)
		}
		logger.Info("outcomes exported", zap.String("file", file))
	}

	if strict && !cmp.ExpectationsMet() {
		return errExpectations
	}
	return nil
}

func exportOutcomes(cmp *orchestrator.Comparison, file string) error {
	if filepath.Ext(file) == ".json" {
		return export.JSON(cmp, file)
	}
	return export.CSV(cmp, file)
}
