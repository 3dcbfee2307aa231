package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration. Values are resolved in order: defaults, config/{ENV_NAME}.yaml,
// config/secrets.yaml, then environment (including .env). Environment variables that are unset leave
// the earlier value in place.
type Config struct {
	ServerPort string `envconfig:"PORT"`

	WeatherAPIKey      string        `envconfig:"WEATHER_API_KEY"`
	WeatherAPIURL      string        `envconfig:"WEATHER_API_URL"`
	GeocodingURL       string        `envconfig:"WEATHER_GEO_URL"`
	WeatherAPITimeout  time.Duration `envconfig:"WEATHER_API_TIMEOUT"`
	WeatherAPILanguage string        `envconfig:"WEATHER_API_LANG"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`

	CacheBackend      string        `envconfig:"CACHE_BACKEND"` // redis, memcached or in_memory
	CacheTTL          time.Duration `envconfig:"CACHE_TTL"`
	CacheWriteTimeout time.Duration `envconfig:"CACHE_WRITE_TIMEOUT"`

	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB"`
	RedisDialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT"`
	RedisReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT"`
	RedisWriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT"`

	MemcachedAddrs        string        `envconfig:"MEMCACHED_ADDRS"`
	MemcachedTimeout      time.Duration `envconfig:"MEMCACHED_TIMEOUT"`
	MemcachedMaxIdleConns int           `envconfig:"MEMCACHED_MAX_IDLE_CONNS"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST"`

	CircuitBreakerEnabled          bool          `envconfig:"CIRCUIT_BREAKER_ENABLED"`
	CircuitBreakerFailureThreshold int           `envconfig:"CIRCUIT_BREAKER_FAILURE_THRESHOLD"`
	CircuitBreakerHalfOpenRequests int           `envconfig:"CIRCUIT_BREAKER_HALF_OPEN_REQUESTS"`
	CircuitBreakerOpenTimeout      time.Duration `envconfig:"CIRCUIT_BREAKER_OPEN_TIMEOUT"`

	WarmLocations []string      `envconfig:"WARM_LOCATIONS"`
	WarmInterval  time.Duration `envconfig:"WARM_INTERVAL"`

	// DailyTimezone is the IANA zone used to group forecast slots into calendar days ("Local" = host zone).
	DailyTimezone string `envconfig:"DAILY_TIMEZONE"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	TrackedLocations []string `envconfig:"TRACKED_LOCATIONS"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL          string `yaml:"url"`
		GeocodingURL string `yaml:"geocoding_url"`
		Timeout      string `yaml:"timeout"`
		Language     string `yaml:"language"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		WriteTimeout string `yaml:"write_timeout"`
		Redis        struct {
			Addr         string `yaml:"addr"`
			Password     string `yaml:"password"`
			DB           int    `yaml:"db"`
			DialTimeout  string `yaml:"dial_timeout"`
			ReadTimeout  string `yaml:"read_timeout"`
			WriteTimeout string `yaml:"write_timeout"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Warming struct {
			Locations []string `yaml:"locations"`
			Interval  string   `yaml:"interval"`
		} `yaml:"warming"`
	} `yaml:"cache"`

	Forecast struct {
		DailyTimezone string `yaml:"daily_timezone"`
	} `yaml:"forecast"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			HalfOpenRequests int    `yaml:"half_open_requests"`
			OpenTimeout      string `yaml:"open_timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	RedisPassword string `yaml:"redis_password"`
}

// Defaults returns the configuration used when nothing overrides a value.
func Defaults() *Config {
	return &Config{
		ServerPort:                     "8000",
		WeatherAPIURL:                  "https://api.openweathermap.org/data/2.5",
		GeocodingURL:                   "http://api.openweathermap.org/geo/1.0/direct",
		WeatherAPITimeout:              5 * time.Second,
		WeatherAPILanguage:             "en",
		RequestTimeout:                 15 * time.Second,
		CacheBackend:                   "redis",
		CacheTTL:                       30 * time.Minute,
		CacheWriteTimeout:              2 * time.Second,
		RedisAddr:                      "localhost:6379",
		RedisDialTimeout:               2 * time.Second,
		RedisReadTimeout:               time.Second,
		RedisWriteTimeout:              time.Second,
		MemcachedAddrs:                 "localhost:11211",
		MemcachedTimeout:               500 * time.Millisecond,
		MemcachedMaxIdleConns:          2,
		CORSOrigins:                    []string{"http://localhost:4200"},
		RateLimitRPS:                   100,
		RateLimitBurst:                 250,
		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerHalfOpenRequests: 1,
		CircuitBreakerOpenTimeout:      30 * time.Second,
		WarmInterval:                   25 * time.Minute,
		DailyTimezone:                  "Local",
		ShutdownTimeout:                30 * time.Second,
	}
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads dir/.env (optional), dir/config/{ENV_NAME}.yaml and dir/config/secrets.yaml, then
// applies environment overrides. A missing YAML file is tolerated for the default "dev" environment
// and an error when ENV_NAME names it explicitly.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	env, explicit := os.LookupEnv("ENV_NAME")
	if env == "" {
		env, explicit = "dev", false
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		applyFile(cfg, &fc)
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found: %s", configPath)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := applySecrets(cfg, filepath.Join(dir, "config", "secrets.yaml")); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	setString(&cfg.ServerPort, fc.Server.Port)
	setString(&cfg.WeatherAPIURL, fc.WeatherAPI.URL)
	setString(&cfg.GeocodingURL, fc.WeatherAPI.GeocodingURL)
	setString(&cfg.WeatherAPILanguage, fc.WeatherAPI.Language)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, cfg.WeatherAPITimeout)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, cfg.RequestTimeout)

	setString(&cfg.CacheBackend, fc.Cache.Backend)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, cfg.CacheTTL)
	cfg.CacheWriteTimeout = parseDuration(fc.Cache.WriteTimeout, cfg.CacheWriteTimeout)

	setString(&cfg.RedisAddr, fc.Cache.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Cache.Redis.Password)
	if fc.Cache.Redis.DB > 0 {
		cfg.RedisDB = fc.Cache.Redis.DB
	}
	cfg.RedisDialTimeout = parseDuration(fc.Cache.Redis.DialTimeout, cfg.RedisDialTimeout)
	cfg.RedisReadTimeout = parseDuration(fc.Cache.Redis.ReadTimeout, cfg.RedisReadTimeout)
	cfg.RedisWriteTimeout = parseDuration(fc.Cache.Redis.WriteTimeout, cfg.RedisWriteTimeout)

	setString(&cfg.MemcachedAddrs, fc.Cache.Memcached.Addrs)
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, cfg.MemcachedTimeout)
	if fc.Cache.Memcached.MaxIdleConns > 0 {
		cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	}

	if len(fc.Cache.Warming.Locations) > 0 {
		cfg.WarmLocations = fc.Cache.Warming.Locations
	}
	cfg.WarmInterval = parseDuration(fc.Cache.Warming.Interval, cfg.WarmInterval)

	setString(&cfg.DailyTimezone, fc.Forecast.DailyTimezone)

	if fc.Reliability.RateLimitRPS > 0 {
		cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	}
	if fc.Reliability.RateLimitBurst > 0 {
		cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	}
	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	if cb.FailureThreshold > 0 {
		cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	}
	if cb.HalfOpenRequests > 0 {
		cfg.CircuitBreakerHalfOpenRequests = cb.HalfOpenRequests
	}
	cfg.CircuitBreakerOpenTimeout = parseDuration(cb.OpenTimeout, cfg.CircuitBreakerOpenTimeout)

	if len(fc.CORS.Origins) > 0 {
		cfg.CORSOrigins = fc.CORS.Origins
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, cfg.ShutdownTimeout)
	cfg.TrackedLocations = fc.Metrics.TrackedLocations
}

func applySecrets(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	setString(&cfg.WeatherAPIKey, sec.WeatherAPIKey)
	setString(&cfg.RedisPassword, sec.RedisPassword)
	return nil
}

func normalize(cfg *Config) {
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.WeatherAPIKey = strings.TrimSpace(cfg.WeatherAPIKey)
	cfg.WarmLocations = trimAll(cfg.WarmLocations)
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// DailyLocation resolves DailyTimezone.
func (c *Config) DailyLocation() (*time.Location, error) {
	return time.LoadLocation(c.DailyTimezone)
}

// validate performs post-load validation. RequestTimeout is raised to cover two sequential
// upstream calls when configured lower.
func validate(cfg *Config) error {
	if cfg.WeatherAPIKey == "" {
		return fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}
	if cfg.ServerPort == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if minReq := 2*cfg.WeatherAPITimeout + time.Second; cfg.RequestTimeout < minReq {
		cfg.RequestTimeout = minReq
	}
	switch cfg.CacheBackend {
	case "redis", "memcached", "in_memory":
	default:
		return fmt.Errorf("cache.backend must be redis, memcached or in_memory, got %q", cfg.CacheBackend)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	if cfg.CircuitBreakerEnabled && cfg.CircuitBreakerFailureThreshold <= 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}
	if len(cfg.WarmLocations) > 0 && cfg.WarmInterval <= 0 {
		return fmt.Errorf("WARM_INTERVAL must be positive when warm locations are set")
	}
	if _, err := cfg.DailyLocation(); err != nil {
		return fmt.Errorf("invalid daily timezone %q: %w", cfg.DailyTimezone, err)
	}
	return nil
}
