// Package config loads process configuration from the environment.
//
// Each concern lives in its own file and struct; AppConfig composes them. Values are
// parsed with caarlos0/env, then Sanitize clamps them into safe ranges.
package config

import "strings"

// AppConfig is the complete process configuration.
type AppConfig struct {
	// Env names the deployment; "development" or "dev" turns on IsDev.
	Env string `env:"APP_ENV" envDefault:"production"`
	// IsDev relaxes production-only requirements such as the encryption key.
	IsDev bool `env:"DEV" envDefault:"false"`

	// SecretsEncryptionKey encrypts stored scoring credentials. Required outside dev.
	SecretsEncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	// RunMigrationsOnStart applies pending migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	HTTP HTTPConfig
	// Services is the comma-separated list of modes this process runs.
	Services string `env:"SERVICES" envDefault:"http"`

	Upload   UploadConfig
	Results  ResultsConfig
	Pipeline PipelineConfig
	Postings PostingsConfig
	Scoring  ScoringConfig

	FetchRunner   RunnerConfig `envPrefix:"FETCH_RUNNER_"`
	MatchRunner   RunnerConfig `envPrefix:"MATCH_RUNNER_"`
	CleanupRunner RunnerConfig `envPrefix:"CLEANUP_RUNNER_"`
	Reaper        ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails after parsing.
func (c *AppConfig) Sanitize() {
	for _, s := range []interface{ Sanitize() }{
		&c.HTTP,
		&c.Upload,
		&c.Pipeline,
		&c.Postings,
		&c.Scoring,
		&c.FetchRunner,
		&c.MatchRunner,
		&c.CleanupRunner,
		&c.Reaper,
		&c.Observability,
	} {
		s.Sanitize()
	}

	// A match delivery must outlive one scoring call.
	if c.MatchRunner.JobLease <= c.Pipeline.MatchTimeout {
		c.MatchRunner.JobLease = c.Pipeline.MatchTimeout + minJobLease
	}

	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "development", "dev":
		c.IsDev = true
	}
}

// GetEnabledServices parses Services.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// Enabled reports whether mode is listed in Services. An unparsable list enables nothing.
func (c *AppConfig) Enabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
