package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultIPURL          = "https://myexternalip.com/raw"
	defaultLogLevel       = "info"
	defaultLogEnv         = "auto"
	defaultMetricsAddress = ":9090"
	defaultCloudflareURL  = "https://api.cloudflare.com/client/v4"
	defaultYDNSURL        = "https://ydns.io/api/v1"
	envPrefix             = "DNSUPDATE_"
	envConfigPath         = envPrefix + "CONFIG"
	listSeparator         = ","
)

// SearchPaths are tried in order when no explicit config path is given.
var SearchPaths = []string{
	".config.yaml",
	"config.yaml",
	"/etc/dnsupdate.yaml",
}

var ErrNotFound = errors.New("config file not found")

type Config struct {
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	FailFast   bool          `yaml:"failFast"`
	IP         IP            `yaml:"ip"`
	Log        Log           `yaml:"log"`
	Metrics    Metrics       `yaml:"metrics"`
	Cloudflare *Cloudflare   `yaml:"cloudflare"`
	YDNS       *YDNS         `yaml:"ydns"`
}

type IP struct {
	URL     string `yaml:"url"`
	Address string `yaml:"address"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type Metrics struct {
	Address  string `yaml:"address"`
	Textfile string `yaml:"textfile"`
}

type Cloudflare struct {
	APIKey       string   `yaml:"apiKey"`
	AccountEmail string   `yaml:"accountEmail"`
	BaseURL      string   `yaml:"baseUrl"`
	Domains      []string `yaml:"domains"`
}

type YDNS struct {
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	BaseURL  string   `yaml:"baseUrl"`
	Domains  []string `yaml:"domains"`
}

// Find returns the config file to load. An explicit path (flag or
// DNSUPDATE_CONFIG) must exist; otherwise the first existing SearchPaths
// entry wins.
func Find(explicit string, search []string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(envConfigPath)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, explicit)
			}
			return "", err
		}
		return explicit, nil
	}

	for _, path := range search {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: searched %s", ErrNotFound, strings.Join(search, ", "))
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandSecrets()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IP.URL == "" {
		cfg.IP.URL = defaultIPURL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = defaultMetricsAddress
	}

	if cf := cfg.Cloudflare; cf != nil {
		if cf.BaseURL == "" {
			cf.BaseURL = defaultCloudflareURL
		}
	}
	if y := cfg.YDNS; y != nil {
		if y.BaseURL == "" {
			y.BaseURL = defaultYDNSURL
		}
	}
}

// expandSecrets resolves credentials written in the file as ${VAR}. Only a
// value that is exactly one reference is replaced; anything else, including
// values set through DNSUPDATE_* variables, is kept verbatim.
func (cfg *Config) expandSecrets() {
	if cf := cfg.Cloudflare; cf != nil {
		cf.APIKey = expandRef(cf.APIKey)
		cf.AccountEmail = expandRef(cf.AccountEmail)
	}
	if y := cfg.YDNS; y != nil {
		y.User = expandRef(y.User)
		y.Password = expandRef(y.Password)
	}
}

func expandRef(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	name := value[2 : len(value)-1]
	if name == "" || strings.ContainsAny(name, "${}") {
		return value
	}
	return os.Getenv(name)
}

// Override from environment if set
func (cfg *Config) applyEnv() {
	if interval := os.Getenv(envPrefix + "INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Interval = d
		} else {
			slog.Default().Warn("fail parse interval to duration from string", "interval", interval, "error", err)
		}
	}
	if timeout := os.Getenv(envPrefix + "TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Timeout = d
		} else {
			slog.Default().Warn("fail parse timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if failFast := os.Getenv(envPrefix + "FAIL_FAST"); failFast != "" {
		if b, err := strconv.ParseBool(failFast); err == nil {
			cfg.FailFast = b
		} else {
			slog.Default().Warn("fail parse failfast to bool from string", "failfast", failFast, "error", err)
		}
	}
	if ipURL := os.Getenv(envPrefix + "IP_URL"); ipURL != "" {
		cfg.IP.URL = ipURL
	}
	if ipAddr := os.Getenv(envPrefix + "IP_ADDRESS"); ipAddr != "" {
		cfg.IP.Address = ipAddr
	}
	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if env := os.Getenv(envPrefix + "LOG_ENV"); env != "" {
		cfg.Log.Env = env
	}
	if addr := os.Getenv(envPrefix + "METRICS_ADDRESS"); addr != "" {
		cfg.Metrics.Address = addr
	}
	if textfile := os.Getenv(envPrefix + "METRICS_TEXTFILE"); textfile != "" {
		cfg.Metrics.Textfile = textfile
	}

	if key := os.Getenv(envPrefix + "CLOUDFLARE_API_KEY"); key != "" {
		cfg.cloudflare().APIKey = key
	}
	if email := os.Getenv(envPrefix + "CLOUDFLARE_ACCOUNT_EMAIL"); email != "" {
		cfg.cloudflare().AccountEmail = email
	}
	if domains := os.Getenv(envPrefix + "CLOUDFLARE_DOMAINS"); domains != "" {
		cfg.cloudflare().Domains = splitList(domains)
	}
	if user := os.Getenv(envPrefix + "YDNS_USER"); user != "" {
		cfg.ydns().User = user
	}
	if password := os.Getenv(envPrefix + "YDNS_PASSWORD"); password != "" {
		cfg.ydns().Password = password
	}
	if domains := os.Getenv(envPrefix + "YDNS_DOMAINS"); domains != "" {
		cfg.ydns().Domains = splitList(domains)
	}
}

func (cfg *Config) cloudflare() *Cloudflare {
	if cfg.Cloudflare == nil {
		cfg.Cloudflare = &Cloudflare{}
	}
	return cfg.Cloudflare
}

func (cfg *Config) ydns() *YDNS {
	if cfg.YDNS == nil {
		cfg.YDNS = &YDNS{}
	}
	return cfg.YDNS
}

// Validate checks that at least one backend is configured and that every
// configured backend carries its credentials.
func (cfg *Config) Validate() error {
	if cfg.Cloudflare == nil && cfg.YDNS == nil {
		return errors.New("config: no backend configured, need a cloudflare or ydns section")
	}
	if cf := cfg.Cloudflare; cf != nil {
		if cf.APIKey == "" {
			return errors.New("config: cloudflare: missing required field 'apiKey'")
		}
		if cf.AccountEmail == "" {
			return errors.New("config: cloudflare: missing required field 'accountEmail'")
		}
	}
	if y := cfg.YDNS; y != nil {
		if y.User == "" {
			return errors.New("config: ydns: missing required field 'user'")
		}
		if y.Password == "" {
			return errors.New("config: ydns: missing required field 'password'")
		}
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("config: negative interval %s", cfg.Interval)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
