package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server     Server     `yaml:"server"`
	Registry   Registry   `yaml:"registry"`
	KeyRelease KeyRelease `yaml:"keyRelease"`
	Content    Content    `yaml:"content"`
	Auth       Auth       `yaml:"auth"`
	Events     Events     `yaml:"events"`
	Log        Log        `yaml:"log"`
	Trace      Trace      `yaml:"trace"`
}

type Server struct {
	Mode          string `yaml:"mode"` // all, registry, keyrelease
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
}

type Registry struct {
	Backend          string `yaml:"backend"` // memory, postgres
	StrictMembership bool   `yaml:"strictMembership"`
}

type KeyRelease struct {
	Backend         string `yaml:"backend"` // memory, redis, postgres
	ConsultRegistry bool   `yaml:"consultRegistry"`
	// RegistryURL is used in keyrelease mode to reach a remote registry.
	RegistryURL string `yaml:"registryURL"`
	RateLimit   int    `yaml:"rateLimit"`
	RateWindow  string `yaml:"rateWindow"`
}

type Content struct {
	Backend  string `yaml:"backend"` // ipfs, pinata, badger, minio
	Cache    string `yaml:"cache"`   // none, memory, memcached
	CacheTTL string `yaml:"cacheTTL"`

	IPFSAPI         string `yaml:"ipfsAPI"`
	PinataAPIKey    string `yaml:"pinataAPIKey"`
	PinataAPISecret string `yaml:"pinataAPISecret"`
	GatewayURL      string `yaml:"gatewayURL"`

	BadgerPath string `yaml:"badgerPath"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

type Auth struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	TokenTTL string `yaml:"tokenTTL"`
}

type Events struct {
	Redis        bool   `yaml:"redis"`
	MQTTBroker   string `yaml:"mqttBroker"`
	MQTTClientID string `yaml:"mqttClientID"`
	MQTTQoS      byte   `yaml:"mqttQoS"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Trace struct {
	Enable   bool   `yaml:"enable"`
	Endpoint string `yaml:"endpoint"`
}

func Default() Config {
	return Config{
		Server: Server{
			Mode:   "all",
			Listen: ":3000",
		},
		Registry: Registry{
			Backend: "memory",
		},
		KeyRelease: KeyRelease{
			Backend:    "memory",
			RateLimit:  100,
			RateWindow: "15m",
		},
		Content: Content{
			Backend:    "badger",
			Cache:      "memory",
			CacheTTL:   "10m",
			IPFSAPI:    "http://localhost:5001",
			GatewayURL: "https://gateway.pinata.cloud",
		},
		Auth: Auth{
			Issuer:   "healthvault",
			TokenTTL: "1h",
		},
		Events: Events{
			MQTTClientID: "healthvault",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, err
		}
	}

	config.LoadFromEnv()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadFromEnv applies HEALTHVAULT_* overrides. ACCESS_TOKEN_SECRET, PORT and
// the PINATA_* keys are read as well for compatibility with older deployments.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("ACCESS_TOKEN_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("HEALTHVAULT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Listen = ":" + v
	}
	if v := os.Getenv("HEALTHVAULT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("HEALTHVAULT_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("HEALTHVAULT_POSTGRES_DSN"); v != "" {
		c.Server.PostgresDsn = v
	}
	if v := os.Getenv("HEALTHVAULT_REDIS_ADDR"); v != "" {
		c.Server.RedisAddr = v
	}
	if v := os.Getenv("HEALTHVAULT_REDIS_PASSWORD"); v != "" {
		c.Server.RedisPassword = v
	}
	if v := os.Getenv("HEALTHVAULT_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Server.RedisDB = db
		}
	}
	if v := os.Getenv("HEALTHVAULT_MEMCACHED_ADDR"); v != "" {
		c.Server.MemcachedAddr = v
	}
	if v := os.Getenv("HEALTHVAULT_REGISTRY_URL"); v != "" {
		c.KeyRelease.RegistryURL = v
	}
	if v := os.Getenv("PINATA_API_KEY"); v != "" {
		c.Content.PinataAPIKey = v
	}
	if v := os.Getenv("PINATA_API_SECRET"); v != "" {
		c.Content.PinataAPISecret = v
	}
	if v := os.Getenv("HEALTHVAULT_MINIO_ACCESS_KEY"); v != "" {
		c.Content.MinioAccessKey = v
	}
	if v := os.Getenv("HEALTHVAULT_MINIO_SECRET_KEY"); v != "" {
		c.Content.MinioSecretKey = v
	}
	if v := os.Getenv("HEALTHVAULT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %v)", field, value, allowed)
}

func (c Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (or set HEALTHVAULT_SECRET)")
	}
	checks := []error{
		oneOf("server.mode", c.Server.Mode, "all", "registry", "keyrelease"),
		oneOf("registry.backend", c.Registry.Backend, "memory", "postgres"),
		oneOf("keyRelease.backend", c.KeyRelease.Backend, "memory", "redis", "postgres"),
		oneOf("content.backend", c.Content.Backend, "ipfs", "pinata", "badger", "minio"),
		oneOf("content.cache", c.Content.Cache, "none", "memory", "memcached"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	for field, value := range map[string]string{
		"keyRelease.rateWindow": c.KeyRelease.RateWindow,
		"content.cacheTTL":      c.Content.CacheTTL,
		"auth.tokenTTL":         c.Auth.TokenTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	if c.Server.Mode == "keyrelease" && c.KeyRelease.ConsultRegistry {
		if err := validateRegistryURL(c.KeyRelease.RegistryURL); err != nil {
			return err
		}
	}
	if (c.Registry.Backend == "postgres" || c.KeyRelease.Backend == "postgres") && c.Server.PostgresDsn == "" {
		return fmt.Errorf("server.postgresDsn is required for the postgres backend")
	}
	if c.KeyRelease.Backend == "redis" && c.Server.RedisAddr == "" {
		return fmt.Errorf("server.redisAddr is required for the redis key store")
	}
	if c.Events.Redis && c.Server.RedisAddr == "" {
		return fmt.Errorf("server.redisAddr is required for redis events")
	}
	if c.Content.Cache == "memcached" && c.Server.MemcachedAddr == "" {
		return fmt.Errorf("server.memcachedAddr is required for the memcached cache")
	}
	return nil
}

// validateRegistryURL requires https unless the registry is on loopback.
func validateRegistryURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("keyRelease.registryURL is required to consult a remote registry")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("keyRelease.registryURL: invalid url %q", raw)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if ip := net.ParseIP(host); host == "localhost" || (ip != nil && ip.IsLoopback()) {
			return nil
		}
		return fmt.Errorf("keyRelease.registryURL: https is required for non-loopback host %q", host)
	}
	return fmt.Errorf("keyRelease.registryURL: unsupported scheme %q", u.Scheme)
}

// Duration parses a field already checked by Validate.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
