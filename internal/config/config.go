// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the full set of runtime knobs for the gateway process.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogFile  string `mapstructure:"log_file"`

	// AWSRegion and AWSProfile select the credential chain used to open
	// the bidirectional inference stream.
	AWSRegion  string `mapstructure:"aws_region" validate:"required"`
	AWSProfile string `mapstructure:"aws_profile"`
	ModelID    string `mapstructure:"model_id" validate:"required"`

	// VoiceID selects the synthesized output voice.
	VoiceID string `mapstructure:"voice_id" validate:"required"`

	// QueueBound is the maximum number of unconsumed outbound events held
	// per session before audio items start dropping oldest-first.
	QueueBound int `mapstructure:"queue_bound" validate:"required"`

	// IdleTimeout is the inactivity window after which the sweeper force
	// closes a session.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"required"`

	// SweepInterval is how often the idle sweeper walks the registry.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required"`

	// TeardownBudget bounds how long a standard (non-forced) teardown may
	// take before it is treated as a force-close.
	TeardownBudget time.Duration `mapstructure:"teardown_budget" validate:"required"`

	// RequestTimeout bounds every individual Send/Recv call against the
	// upstream bidirectional stream; a call that neither completes nor
	// observes the session's close signal within this window is treated
	// as a driver error.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`

	// OpenTimeout bounds how long Initiate waits for the upstream stream
	// to open before the session is torn down.
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"required"`

	// HandshakeTimeout bounds how long Initiate waits, after the stream
	// opens, for the first inbound frame to confirm the handshake.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"required"`

	// MaxConcurrentStreamsPerClient caps the number of simultaneous
	// WebSocket connections (and therefore upstream streams) a single
	// client id may hold open at once.
	MaxConcurrentStreamsPerClient int `mapstructure:"max_concurrent_streams_per_client" validate:"required"`

	// WeatherAPIBase is the open-meteo endpoint used by getWeatherTool.
	WeatherAPIBase string `mapstructure:"weather_api_base" validate:"required"`
}

// InitConfig loads environment-backed configuration the way every gateway
// process in this codebase does: a ".env" file if present, overridden by
// real environment variables.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	if err := vConfig.ReadInConfig(); err != nil {
		log.Printf("no .env file found, relying on environment: %v", err)
	}

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("reading from environment variables only: %v", err)
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "voice-gateway")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_PROFILE", "")
	v.SetDefault("MODEL_ID", "amazon.nova-sonic-v1:0")
	v.SetDefault("VOICE_ID", "tiffany")

	v.SetDefault("QUEUE_BOUND", 200)
	v.SetDefault("IDLE_TIMEOUT", "5m")
	v.SetDefault("SWEEP_INTERVAL", "60s")
	v.SetDefault("TEARDOWN_BUDGET", "5s")
	v.SetDefault("REQUEST_TIMEOUT", "300s")
	v.SetDefault("OPEN_TIMEOUT", "30s")
	v.SetDefault("HANDSHAKE_TIMEOUT", "15s")
	v.SetDefault("MAX_CONCURRENT_STREAMS_PER_CLIENT", 10)

	v.SetDefault("WEATHER_API_BASE", "https://api.open-meteo.com")
}

// GetApplicationConfig unmarshals and validates the AppConfig from viper.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &cfg, nil
}
