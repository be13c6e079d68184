package main

import "log/slog"

type ServerConfig struct {
	Server struct {
		Host string `yaml:"host" envconfig:"SERVER_HOST"`
		Port int    `yaml:"port" default:"8600" envconfig:"SERVER_PORT"`

		LogLevel slog.Level `yaml:"log_level" envconfig:"LOG_LEVEL"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path" default:"roost.db" envconfig:"DATABASE_PATH"`
	} `yaml:"database"`
	Scheduler struct {
		// ProbeConcurrency bounds concurrently running probes across all nodes.
		ProbeConcurrency int64 `yaml:"probe_concurrency" default:"10" envconfig:"PROBE_CONCURRENCY"`
	} `yaml:"scheduler"`
	TaskQueue struct {
		Ingester struct {
			ProducerAddress string `yaml:"producer_address" default:"mem://ingester_tasks" envconfig:"INGESTER_PRODUCER_ADDRESS"`
			ConsumerAddress string `yaml:"consumer_address" default:"mem://ingester_tasks" envconfig:"INGESTER_CONSUMER_ADDRESS"`
		} `yaml:"ingester"`
	} `yaml:"task_queue"`
	Dashboard struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds" default:"30" envconfig:"DASHBOARD_CACHE_TTL_SECONDS"`
	} `yaml:"dashboard"`
	Cors struct {
		AllowedOrigins []string `yaml:"allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	} `yaml:"cors"`
	Sentry struct {
		Dsn                   string  `yaml:"dsn" envconfig:"SENTRY_DSN"`
		ErrorSampleRate       float64 `yaml:"error_sample_rate" default:"1.0" envconfig:"SENTRY_ERROR_SAMPLE_RATE"`
		TracesSampleRate      float64 `yaml:"traces_sample_rate" default:"1.0" envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
		ProfilingSampleRate   float64 `yaml:"profiling_sample_rate" default:"0.1" envconfig:"SENTRY_PROFILING_SAMPLE_RATE"`
		Debug                 bool    `yaml:"debug" default:"false" envconfig:"SENTRY_DEBUG"`
		TraceOutgoingRequests bool    `yaml:"trace_outgoing_requests" default:"false" envconfig:"SENTRY_TRACE_OUTGOING_REQUESTS"`
	} `yaml:"sentry"`
}
