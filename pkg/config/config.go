package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Matching     MatchingConfig
	AutoMap      AutoMapConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Matching.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MERCHOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCHOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERCHOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCHOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERCHOPS_DB_DSN"`
	Driver string `envconfig:"MERCHOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERCHOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"MERCHOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERCHOPS_DB_USER"`
	LegacyPassword string `envconfig:"MERCHOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERCHOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERCHOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCHOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCHOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCHOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCHOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// MatchingConfig carries the candidate scoring policy. The weights and
// thresholds are tuning knobs, not structural constants.
type MatchingConfig struct {
	AmountWeight float64 `envconfig:"MERCHOPS_MATCH_AMOUNT_WEIGHT" default:"0.5"`
	NameWeight   float64 `envconfig:"MERCHOPS_MATCH_NAME_WEIGHT" default:"0.3"`
	DateWeight   float64 `envconfig:"MERCHOPS_MATCH_DATE_WEIGHT" default:"0.2"`

	HighConfidenceThreshold float64 `envconfig:"MERCHOPS_MATCH_HIGH_CONFIDENCE" default:"0.85"`
	ReviewThreshold         float64 `envconfig:"MERCHOPS_MATCH_REVIEW_THRESHOLD" default:"0.6"`
	MarginEpsilon           float64 `envconfig:"MERCHOPS_MATCH_MARGIN_EPSILON" default:"0.05"`

	CandidateWindow  time.Duration `envconfig:"MERCHOPS_MATCH_CANDIDATE_WINDOW" default:"168h"`
	MaxAmountRelDiff float64       `envconfig:"MERCHOPS_MATCH_MAX_AMOUNT_REL_DIFF" default:"0.1"`
}

func (m MatchingConfig) validate() error {
	total := m.AmountWeight + m.NameWeight + m.DateWeight
	if total <= 0 {
		return fmt.Errorf("matching weights must sum to a positive value")
	}
	if m.HighConfidenceThreshold < m.ReviewThreshold {
		return fmt.Errorf("high confidence threshold must not be below the review threshold")
	}
	if m.MarginEpsilon < 0 {
		return fmt.Errorf("margin epsilon must not be negative")
	}
	if m.CandidateWindow <= 0 {
		return fmt.Errorf("candidate window must be positive")
	}
	return nil
}

// AutoMapConfig bounds a single auto-map batch invocation.
type AutoMapConfig struct {
	Concurrency int           `envconfig:"MERCHOPS_AUTOMAP_CONCURRENCY" default:"4"`
	MaxOrders   int           `envconfig:"MERCHOPS_AUTOMAP_MAX_ORDERS" default:"0"`
	TimeLimit   time.Duration `envconfig:"MERCHOPS_AUTOMAP_TIME_LIMIT" default:"0"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCHOPS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
