package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
	dbDSN   string
	metrics bool

	// readErr is the config file error seen by initConfig, reported by the
	// first command that needs configuration.
	readErr error

	// conf splits nested keys on "::" so that host names keep their dots
	// inside trust.domain_map.
	conf = viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
)

const keyDelimiter = "::"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tntracker",
	Short: "tntracker - Tamil Nadu candidate and election data tracker",
	Long: `tntracker ingests candidate, election, manifesto and promise data about
Tamil Nadu from official, civic and news sources and reconciles it into one
canonical, auditable store.

Every field remembers the source that set it. A lower-trust source never
overwrites a higher-trust one, and every change is written to an
append-only update log.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tntracker v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.tntracker/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "database DSN (overrides database.dsn)")
	rootCmd.PersistentFlags().BoolVar(&metrics, "metrics", false, "collect run metrics and print them at the end (exported when metrics.otlp_endpoint is set)")

	// Bind flags to viper
	_ = conf.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = conf.BindPFlag("database"+keyDelimiter+"dsn", rootCmd.PersistentFlags().Lookup("db"))
	_ = conf.BindPFlag("metrics"+keyDelimiter+"enabled", rootCmd.PersistentFlags().Lookup("metrics"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// A .env file fills in variables the environment does not already set
	_ = godotenv.Load()

	if cfgFile != "" {
		conf.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			conf.AddConfigPath(filepath.Join(home, ".tntracker"))
		}
		conf.SetConfigType("yaml")
		conf.SetConfigName("config")
	}

	// Read in environment variables that match TNTRACKER_*, with nested keys
	// joined by underscores: TNTRACKER_DATABASE_DSN
	conf.SetEnvPrefix("TNTRACKER")
	conf.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	conf.AutomaticEnv()

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		readErr = err
		return
	}

	err := conf.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", conf.ConfigFileUsed())
		}
	case errors.As(err, &notFound) && cfgFile == "":
		// No config file is fine, defaults and env apply
	default:
		readErr = err
	}
}

// registerDefaults makes every configuration key known to viper so that
// environment variables can override keys absent from the config file.
func registerDefaults(cfg *model.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	setDefaults("", tree)
	return nil
}

func setDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + keyDelimiter + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		conf.SetDefault(key, v)
	}
}

// loadConfig merges defaults, the config file, environment and flags, and
// configures logging from the result.
func loadConfig() (*model.Config, error) {
	if readErr != nil {
		return nil, errors.NewConfigError("config", "cannot read configuration", readErr)
	}
	cfg := &model.Config{}
	if err := conf.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "invalid configuration", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logging.Configure(cfg.Log)
	return cfg, nil
}
