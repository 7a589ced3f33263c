// Package cmd provides the command-line interface of trialclock.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// envFile holds default flag values, one TRIALCLOCK_* variable per line.
const envFile = ".env"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trialclock",
	Short: "trialclock runs and inspects tick-driven stimulus/response sessions.",
	Long: `trialclock runs tick-driven stimulus/response sessions that write ` +
		`Gray-coded sync codes and record every event, and inspects the ` +
		`recordings afterwards. Flags default to TRIALCLOCK_* environment ` +
		`variables, which can be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		err := loadEnvFile(envFile)
		if err != nil {
			return err
		}

		return applyEnvDefaults(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// envFlags maps flag names to the environment variables that provide their
// defaults.
var envFlags = map[string]string{
	"period":       "TRIALCLOCK_PERIOD",
	"code-width":   "TRIALCLOCK_CODE_WIDTH",
	"trials":       "TRIALCLOCK_TRIALS",
	"monitor-port": "TRIALCLOCK_MONITOR_PORT",
	"output":       "TRIALCLOCK_OUTPUT",
	"seed":         "TRIALCLOCK_SEED",
}

// applyEnvDefaults sets every flag that was not given on the command line
// from its environment variable.
func applyEnvDefaults(cmd *cobra.Command) error {
	for flag, env := range envFlags {
		f := cmd.Flags().Lookup(flag)
		if f == nil || f.Changed {
			continue
		}

		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}

		err := cmd.Flags().Set(flag, value)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", env, value, err)
		}
	}

	return nil
}
