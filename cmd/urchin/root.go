package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "urchin"

var rootCmd = &cobra.Command{
	Use:   "urchin",
	Short: "Generate GLR parsing tables from a grammar",
	Long: `urchin provides the following features:
- Compiles a grammar into portable GLR parsing tables.
- Parses a text stream with compiled tables and prints every syntax tree.
- Runs test cases against a grammar.
- Generates Go code embedding compiled tables.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// config holds the settings of a command. A setting is taken from a flag, an environment variable
// (URCHIN_<FLAG_NAME>), or the config file, in this order.
var config = viper.New()

var logger = logrus.New()

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file path (YAML, JSON, or TOML)")
	f.String("log-level", "warn", "log level (trace, debug, info, warn, or error)")
	f.String("log-format", "text", "log format (text or json)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	var errs []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := config.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err.Error())
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("failed to bind flags: %v", strings.Join(errs, "; "))
	}

	if path := config.GetString("config"); path != "" {
		config.SetConfigFile(path)
		if err := config.ReadInConfig(); err != nil {
			return fmt.Errorf("Cannot read the config file %s: %w", path, err)
		}
	}

	level, err := logrus.ParseLevel(config.GetString("log-level"))
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	switch format := config.GetString("log-format"); format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %v", format)
	}
	return nil
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}
