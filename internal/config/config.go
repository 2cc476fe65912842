package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// User identifies one WHOOP account shown on the comparison grid.
type User struct {
	Name     string
	Username string
	Password string
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherZIP        string
	WeatherAPITimeout time.Duration

	WhoopAPIURL     string
	WhoopAPITimeout time.Duration
	Users           []User

	TasksURL     string
	TasksTimeout time.Duration
	TaskLimit    int

	RequestTimeout time.Duration

	ForecastTTL  time.Duration
	TasksTTL     time.Duration
	CacheBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	WarmPanels   bool
	WarmInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Weather struct {
		URL     string `yaml:"url"`
		ZIP     string `yaml:"zip"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather"`

	Whoop struct {
		URL     string   `yaml:"url"`
		Timeout string   `yaml:"timeout"`
		Users   []string `yaml:"users"`
	} `yaml:"whoop"`

	Tasks struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Limit   int    `yaml:"limit"`
	} `yaml:"tasks"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend     string `yaml:"backend"`
		ForecastTTL string `yaml:"forecast_ttl"`
		TasksTTL    string `yaml:"tasks_ttl"`
		Memcached   struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		Breaker          struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"breaker"`
	} `yaml:"reliability"`

	Warming struct {
		Enabled  *bool  `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"warming"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	Whoop         map[string]struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"whoop"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// The weather API key comes from WEATHER_API_KEY env or the secrets file; per-user WHOOP
// credentials come from {NAME}_USERNAME / {NAME}_PASSWORD env or the secrets file.
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8000"
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = sec.WeatherAPIKey
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.Weather.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/forecast"
	}
	cfg.WeatherZIP = strings.TrimSpace(os.Getenv("ZIP"))
	if cfg.WeatherZIP == "" {
		cfg.WeatherZIP = strings.TrimSpace(fc.Weather.ZIP)
	}
	if cfg.WeatherZIP == "" {
		return nil, fmt.Errorf("weather.zip required (set ZIP env or config)")
	}
	cfg.WeatherAPITimeout = parseDuration(fc.Weather.Timeout, 5*time.Second)

	cfg.WhoopAPIURL = fc.Whoop.URL
	if cfg.WhoopAPIURL == "" {
		cfg.WhoopAPIURL = "https://api-7.whoop.com"
	}
	cfg.WhoopAPITimeout = parseDuration(fc.Whoop.Timeout, 10*time.Second)
	for _, name := range fc.Whoop.Users {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		u := User{Name: name}
		envName := strings.ToUpper(name)
		u.Username = os.Getenv(envName + "_USERNAME")
		u.Password = os.Getenv(envName + "_PASSWORD")
		if u.Username == "" || u.Password == "" {
			if creds, ok := sec.Whoop[strings.ToLower(name)]; ok {
				if u.Username == "" {
					u.Username = creds.Username
				}
				if u.Password == "" {
					u.Password = creds.Password
				}
			}
		}
		if u.Username == "" || u.Password == "" {
			return nil, fmt.Errorf("credentials required for user %s (set %s_USERNAME/%s_PASSWORD or secrets)", name, envName, envName)
		}
		cfg.Users = append(cfg.Users, u)
	}

	cfg.TasksURL = fc.Tasks.URL
	if cfg.TasksURL == "" {
		return nil, fmt.Errorf("tasks.url required")
	}
	cfg.TasksTimeout = parseDuration(fc.Tasks.Timeout, 5*time.Second)
	cfg.TaskLimit = fc.Tasks.Limit
	if cfg.TaskLimit <= 0 {
		cfg.TaskLimit = 6
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.ForecastTTL = parseDuration(fc.Cache.ForecastTTL, 30*time.Minute)
	cfg.TasksTTL = parseDuration(fc.Cache.TasksTTL, 1*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.BreakerEnabled = true
	if fc.Reliability.Breaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.Reliability.Breaker.Enabled
	}
	cfg.BreakerFailureThreshold = fc.Reliability.Breaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.Breaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.Breaker.Timeout, 30*time.Second)

	cfg.WarmPanels = true
	if fc.Warming.Enabled != nil {
		cfg.WarmPanels = *fc.Warming.Enabled
	}
	cfg.WarmInterval = parseDuration(fc.Warming.Interval, 15*time.Minute)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 5*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty string,
// parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The request timeout must exceed the
// slowest upstream timeout so upstream calls are not cut short by the route deadline.
func validate(cfg *Config) error {
	maxUpstream := cfg.WeatherAPITimeout
	if cfg.WhoopAPITimeout > maxUpstream {
		maxUpstream = cfg.WhoopAPITimeout
	}
	if cfg.TasksTimeout > maxUpstream {
		maxUpstream = cfg.TasksTimeout
	}
	if cfg.RequestTimeout <= maxUpstream {
		cfg.RequestTimeout = maxUpstream + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
