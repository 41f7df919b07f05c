package config

import (
	"fmt"
	"os"
	"remitscout-backend/internal/compare"
	"remitscout-backend/internal/components/configutil"
	"remitscout-backend/internal/components/telemetry"
	"remitscout-backend/internal/providers"
	"remitscout-backend/internal/rates"
	"time"
)

const (
	ENV_RATE_API_CLIENT_ID     = "RATE_API_CLIENT_ID"
	ENV_RATE_API_CLIENT_SECRET = "RATE_API_CLIENT_SECRET"
	ENV_REDIS_PASSWORD         = "REDIS_PASSWORD"
)

type DurableDriver string

const (
	DURABLE_BADGER DurableDriver = "badger"
	DURABLE_REDIS  DurableDriver = "redis"
)

type RatesConfig struct {
	BaseURL      string   `json:"base_url"`
	Path         string   `json:"path"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
	Timeout      string   `json:"timeout"`

	CurrentTTL       string `json:"current_ttl"`
	HistoricalTTL    string `json:"historical_ttl"`
	CurrentFreshness string `json:"current_freshness"`
	MemorySize       int    `json:"memory_size"`
	WriteQueueSize   int    `json:"write_queue_size"`
	WriteTimeout     string `json:"write_timeout"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type DurableConfig struct {
	Driver DurableDriver `json:"driver"`
	// BadgerPath is the badger directory, empty keeps the store in memory.
	BadgerPath string      `json:"badger_path"`
	Redis      RedisConfig `json:"redis"`
}

type ProvidersConfig struct {
	// TablesPath is a json5 file merged over the embedded curated tables.
	TablesPath        string  `json:"tables_path"`
	ProbeTimeout      string  `json:"probe_timeout"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	UserAgent         string  `json:"user_agent"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	DumpDir           string  `json:"dump_dir"`
}

type ChromeConfig struct {
	Headless  bool   `json:"headless"`
	ExecPath  string `json:"exec_path"`
	UserAgent string `json:"user_agent"`
	NoSandbox bool   `json:"no_sandbox"`
}

type CompareConfig struct {
	// SettingsPath is a json5 file merged over the embedded pairs, selectors and bands.
	SettingsPath string       `json:"settings_path"`
	SnapshotPath string       `json:"snapshot_path"`
	HistoryDB    string       `json:"history_db"`
	Chrome       ChromeConfig `json:"chrome"`
}

type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Location string `json:"location"`
	// HistoryRetention prunes stored runs older than this after every run, empty keeps everything.
	HistoryRetention string `json:"history_retention"`
}

type Config struct {
	Verbose   bool             `json:"verbose"`
	Rates     RatesConfig      `json:"rates"`
	Durable   DurableConfig    `json:"durable"`
	Providers ProvidersConfig  `json:"providers"`
	Compare   CompareConfig    `json:"compare"`
	Schedule  ScheduleConfig   `json:"schedule"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func Default() Config {
	return Config{
		Rates: RatesConfig{
			BaseURL:          "https://api.rates.example.com",
			Path:             "/v1/rates",
			Timeout:          "10s",
			CurrentTTL:       "5m",
			HistoricalTTL:    "1h",
			CurrentFreshness: "5m",
			MemorySize:       1024,
			WriteQueueSize:   256,
			WriteTimeout:     "5s",
		},
		Durable: DurableConfig{
			Driver:     DURABLE_BADGER,
			BadgerPath: ".data/rates",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "rates:",
			},
		},
		Providers: ProvidersConfig{
			ProbeTimeout:      "5s",
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Compare: CompareConfig{
			SnapshotPath: "data/remittance_data.json",
			HistoryDB:    ".data/history.db",
			Chrome: ChromeConfig{
				Headless: true,
			},
		},
		Schedule: ScheduleConfig{
			Cron:     "0 */6 * * *",
			Location: "UTC",
		},
	}
}

// Load reads the config file at path over the defaults, then applies .env files and the
// environment. A missing file leaves the defaults untouched.
func Load(path string, dotenv ...string) (Config, error) {
	cfg, err := configutil.ReadOver(Default(), path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	err = configutil.LoadDotenv(dotenv...)
	if err != nil {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(ENV_RATE_API_CLIENT_ID); v != "" {
		c.Rates.ClientID = v
	}
	if v := os.Getenv(ENV_RATE_API_CLIENT_SECRET); v != "" {
		c.Rates.ClientSecret = v
	}
	if v := os.Getenv(ENV_REDIS_PASSWORD); v != "" {
		c.Durable.Redis.Password = v
	}
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func (c RatesConfig) ClientOptions() (rates.APIClientOptions, error) {
	timeout, err := parseDuration("rates.timeout", c.Timeout)
	if err != nil {
		return rates.APIClientOptions{}, err
	}
	return rates.APIClientOptions{
		BaseURL:      c.BaseURL,
		Path:         c.Path,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
		Timeout:      timeout,
	}, nil
}

// ServiceOptions fills unset values from rates.DefaultOptions.
func (c RatesConfig) ServiceOptions() (rates.Options, error) {
	opts := rates.DefaultOptions()
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{name: "rates.current_ttl", value: c.CurrentTTL, dst: &opts.CurrentTTL},
		{name: "rates.historical_ttl", value: c.HistoricalTTL, dst: &opts.HistoricalTTL},
		{name: "rates.current_freshness", value: c.CurrentFreshness, dst: &opts.CurrentFreshness},
		{name: "rates.write_timeout", value: c.WriteTimeout, dst: &opts.WriteTimeout},
	}
	for _, f := range fields {
		d, err := parseDuration(f.name, f.value)
		if err != nil {
			return rates.Options{}, err
		}
		if d > 0 {
			*f.dst = d
		}
	}
	if c.MemorySize > 0 {
		opts.MemorySize = c.MemorySize
	}
	if c.WriteQueueSize > 0 {
		opts.WriteQueueSize = c.WriteQueueSize
	}
	return opts, nil
}

func (c DurableConfig) RedisOptions() rates.RedisOptions {
	return rates.RedisOptions{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}

func (c ProvidersConfig) DiscovererOptions() (providers.DiscovererOptions, error) {
	timeout, err := parseDuration("providers.probe_timeout", c.ProbeTimeout)
	if err != nil {
		return providers.DiscovererOptions{}, err
	}
	return providers.DiscovererOptions{
		ProbeTimeout:      timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		UserAgent:         c.UserAgent,
		CloudflareBypass:  c.CloudflareBypass,
		DumpDir:           c.DumpDir,
	}, nil
}

func (c ChromeConfig) Options() compare.ChromeOptions {
	return compare.ChromeOptions{
		Headless:  c.Headless,
		ExecPath:  c.ExecPath,
		UserAgent: c.UserAgent,
		NoSandbox: c.NoSandbox,
	}
}

func (c ScheduleConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("schedule.location: %w", err)
	}
	return loc, nil
}

func (c ScheduleConfig) Retention() (time.Duration, error) {
	return parseDuration("schedule.history_retention", c.HistoryRetention)
}
