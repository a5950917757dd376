package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the award pipeline system.
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	USASpending  USASpendingConfig  `mapstructure:"usaspending"`
	SAM          SAMConfig          `mapstructure:"sam"`
	Insight      InsightConfig      `mapstructure:"insight"`
	Ingest       IngestConfig       `mapstructure:"ingest"`
	Intelligence IntelligenceConfig `mapstructure:"intelligence"`
	Linker       LinkerConfig       `mapstructure:"linker"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// USASpendingConfig contains settings for the upstream award-search API.
type USASpendingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
}

// Normalize applies defaults for unset client values.
func (u USASpendingConfig) Normalize() USASpendingConfig {
	if strings.TrimSpace(u.BaseURL) == "" {
		u.BaseURL = "https://api.usaspending.gov/api/v2"
	}
	if u.Timeout <= 0 {
		u.Timeout = 45 * time.Second
	}
	if u.MaxRetries <= 0 {
		u.MaxRetries = 3
	}
	if u.RetryDelay <= 0 {
		u.RetryDelay = time.Second
	}
	if u.RequestsPerSecond <= 0 {
		u.RequestsPerSecond = 10
	}
	return u
}

// SAMConfig contains settings for the secondary vendor-registry lookup.
type SAMConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Normalize applies defaults for unset registry values.
func (s SAMConfig) Normalize() SAMConfig {
	if strings.TrimSpace(s.BaseURL) == "" {
		s.BaseURL = "https://api.sam.gov/entity-information/v3"
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 24 * time.Hour
	}
	return s
}

// InsightConfig contains settings for the AI text-analysis collaborator.
type InsightConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// IngestConfig contains defaults for award discovery batches.
type IngestConfig struct {
	NAICSCodes     []string      `mapstructure:"naics_codes"`
	AwardTypeCodes []string      `mapstructure:"award_type_codes"`
	Agencies       []string      `mapstructure:"agencies"`
	LookbackMonths int           `mapstructure:"lookback_months"`
	MaxPages       int           `mapstructure:"max_pages"`
	PageLimit      int           `mapstructure:"page_limit"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	ScheduleCron   string        `mapstructure:"schedule_cron"`
}

// Normalize applies defaults for unset ingest values.
func (i IngestConfig) Normalize() IngestConfig {
	if len(i.NAICSCodes) == 0 {
		i.NAICSCodes = []string{"541512", "541511", "541519", "541690"}
	}
	if len(i.AwardTypeCodes) == 0 {
		i.AwardTypeCodes = []string{"A", "B", "C", "D"}
	}
	if i.LookbackMonths <= 0 {
		i.LookbackMonths = 36
	}
	if i.MaxPages <= 0 {
		i.MaxPages = 5
	}
	if i.PageLimit <= 0 {
		i.PageLimit = 100
	}
	if i.PageDelay <= 0 {
		i.PageDelay = 500 * time.Millisecond
	}
	return i
}

// IntelligenceConfig contains analyzer thresholds and cache behaviour.
type IntelligenceConfig struct {
	CacheTTLDays  int `mapstructure:"cache_ttl_days"`
	MinSampleSize int `mapstructure:"min_sample_size"`
	WindowYears   int `mapstructure:"window_years"`
}

// Normalize applies defaults for unset analyzer values.
func (c IntelligenceConfig) Normalize() IntelligenceConfig {
	if c.CacheTTLDays <= 0 {
		c.CacheTTLDays = 7
	}
	if c.MinSampleSize <= 0 {
		c.MinSampleSize = 5
	}
	if c.WindowYears <= 0 {
		c.WindowYears = 3
	}
	return c
}

// LinkerConfig contains fuzzy-match policy settings.
type LinkerConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MinCriteria         int     `mapstructure:"min_criteria"`
	CandidateCap        int     `mapstructure:"candidate_cap"`
}

// Normalize applies defaults for unset linker values.
func (l LinkerConfig) Normalize() LinkerConfig {
	if l.ConfidenceThreshold <= 0 {
		l.ConfidenceThreshold = 0.7
	}
	if l.MinCriteria <= 0 {
		l.MinCriteria = 2
	}
	if l.CandidateCap <= 0 {
		l.CandidateCap = 200
	}
	return l
}

// PipelineConfig contains orchestrator pacing settings.
type PipelineConfig struct {
	ItemDelay time.Duration `mapstructure:"item_delay"`
}

// Normalize applies defaults for unset pipeline values.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.ItemDelay <= 0 {
		p.ItemDelay = 2 * time.Second
	}
	return p
}

// LoadConfig loads config from file, falling back to the usual search paths
// and AWARDFLOW_* environment variables.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("AWARDFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.USASpending = cfg.USASpending.Normalize()
	cfg.SAM = cfg.SAM.Normalize()
	cfg.Ingest = cfg.Ingest.Normalize()
	cfg.Intelligence = cfg.Intelligence.Normalize()
	cfg.Linker = cfg.Linker.Normalize()
	cfg.Pipeline = cfg.Pipeline.Normalize()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
