package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "LINGORELAY"

func newRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "lingorelay",
		Short: "Translation dispatch service with rate-limited caching",
		Long: "lingorelay dispatches chat translation requests through a bounded " +
			"in-memory cache, a quota governor, and a pluggable translation backend, " +
			"persisting one audit record per request.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default lingorelay.yaml in . or $HOME)")
	flags.String("store-path", "", "sqlite database path")
	flags.String("provider", "", "translation backend (google or openai)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("store.path", flags.Lookup("store-path"))
	_ = viper.BindPFlag("translate.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))

	cobra.OnInitialize(func() {
		initConfig(cfgFile)
	})

	cmd.AddCommand(newUsageCommand())

	return cmd
}

func initConfig(cfgFile string) {
	setConfigDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("lingorelay")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setConfigDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("store.path", "data/lingorelay.db")

	viper.SetDefault("cache.capacity", 4096)
	viper.SetDefault("cache.ttl", 24*time.Hour)

	viper.SetDefault("quota.window", time.Minute)
	viper.SetDefault("quota.limit", 300)
	viper.SetDefault("quota.max_waiters", 32)
	viper.SetDefault("quota.monthly_char_limit", 500000)
	viper.SetDefault("quota.safety_factor", 0.98)

	viper.SetDefault("translate.provider", "google")
	viper.SetDefault("translate.attempt_timeout", 10*time.Second)
	viper.SetDefault("translate.max_attempts", 3)

	viper.SetDefault("dispatch.request_deadline", 30*time.Second)
	viper.SetDefault("dispatch.max_quota_wait", 10*time.Second)
}
