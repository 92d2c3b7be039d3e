package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/TFMV/panewatch/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panewatch",
	Short: "Directory change notifications for file panels",
	Long: `panewatch keeps file panels in sync with the directories they show.
It watches each panel's directory, coalesces bursts of changes and tells the
panel when a refresh may be needed, without ever blocking on a hung mount.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.panewatch.yaml)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.Bool("silent", false, "Disable all output except errors")
	flags.String("format", "text", "Output format (text|json)")
	flags.Duration("quiet-window", watch.DefaultQuietWindow, "Minimum time between notifications for a burst of changes")
	flags.Duration("drain-wait", watch.DefaultDrainWait, "How long to wait for a closed watch to be released")
	flags.Duration("reclaim-timeout", watch.DefaultReclaimTimeout, "How long shutdown waits for pending closes")
	flags.Bool("normalize-unicode", false, "Treat NFC and NFD spellings of a path as the same directory")

	// Bind flags to viper
	for _, name := range []string{
		"verbose", "silent", "format", "quiet-window", "drain-wait", "reclaim-timeout", "normalize-unicode",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".panewatch" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".panewatch")
	}

	viper.SetEnvPrefix("panewatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("silent") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// logLevel maps the verbosity flags to a watcher log level.
func logLevel() watch.LogLevel {
	switch {
	case viper.GetBool("verbose"):
		return watch.LogLevelDebug
	case viper.GetBool("silent"):
		return watch.LogLevelError
	default:
		return watch.LogLevelWarn
	}
}

// watchOptions builds coordinator options from flags, environment and config.
func watchOptions(logger *zap.Logger) (watch.Options, error) {
	format := viper.GetString("format")
	if format != "text" && format != "json" {
		return watch.Options{}, fmt.Errorf("invalid format: %s", format)
	}

	quiet := viper.GetDuration("quiet-window")
	if quiet == 0 {
		// Zero on the command line means "no throttling".
		quiet = -1
	}

	return watch.Options{
		QuietWindow:      quiet,
		DrainWait:        viper.GetDuration("drain-wait"),
		ReclaimTimeout:   viper.GetDuration("reclaim-timeout"),
		NormalizeUnicode: viper.GetBool("normalize-unicode"),
		Logger:           logger,
	}, nil
}
