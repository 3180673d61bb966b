package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// envPrefix namespaces environment overrides, e.g. VOICEKIT_REALTIME_MODEL.
const envPrefix = "VOICEKIT"

// Override keys shared by flags and environment variables.
const (
	keyTransport    = "realtime.transport"
	keyModel        = "realtime.model"
	keyVoice        = "realtime.voice"
	keyIssuerURL    = "issuer.url"
	keyAvatar       = "issuer.avatar"
	keyListen       = "issuer.listenAddr"
	keyDevice       = "media.device"
	keyWatchdog     = "watchdog.enabled"
	keyLevel        = "prompt.level"
	keyTopic        = "prompt.topic"
	keyTopicID      = "prompt.topicID"
	keyCustomOption = "prompt.customOption"
	keyHints        = "prompt.showHints"
	keyCatalogURL   = "catalog.url"
	keyRedis        = "catalog.redisAddr"
	keyMetricsAddr  = "observability.metricsAddr"
	keyOTLP         = "observability.otlpEndpoint"
)

// newSettings returns a viper instance reading VOICEKIT_* variables.
func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags ties each flag to its override key. Flag names are the keys
// with dots replaced by dashes.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys ...string) error {
	for _, key := range keys {
		name := flagName(key)
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("flag %q is not defined", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func flagName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, ".", "-"))
}

// loadConfig reads the manifest named by --config (or the defaults) and
// layers environment and flag overrides on top.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg := config.Defaults()
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Configure(cfg.Logging.ToLoggerSpec()); err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
		logger.SetVerbose(true)
	}
	return cfg, nil
}

// applyOverrides copies every set key from v into cfg.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		keyTransport:    &cfg.Realtime.Transport,
		keyModel:        &cfg.Realtime.Model,
		keyVoice:        &cfg.Realtime.Voice,
		keyIssuerURL:    &cfg.Issuer.URL,
		keyAvatar:       &cfg.Issuer.Avatar,
		keyListen:       &cfg.Issuer.ListenAddr,
		keyDevice:       &cfg.Media.Device,
		keyLevel:        &cfg.Prompt.Level,
		keyTopic:        &cfg.Prompt.Topic,
		keyTopicID:      &cfg.Prompt.TopicID,
		keyCustomOption: &cfg.Prompt.CustomOption,
		keyCatalogURL:   &cfg.Catalog.URL,
		keyRedis:        &cfg.Catalog.RedisAddr,
		keyMetricsAddr:  &cfg.Observability.MetricsAddr,
		keyOTLP:         &cfg.Observability.OTLPEndpoint,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	bools := map[string]*bool{
		keyWatchdog: &cfg.Watchdog.Enabled,
		keyHints:    &cfg.Prompt.ShowHints,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
}
