package marketplace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the set of marketplace connections the application pulls
// sales data from.
type Config struct {
	Connections []*ConnectionConfig `yaml:"connections"`
}

// ConnectionConfig represents one configured store. Credential fields are
// marketplace-specific; builders validate the ones their kind requires and
// fail construction when a required secret is missing.
type ConnectionConfig struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	// Static-secret credentials (Rakuten RMS).
	ServiceSecret string `yaml:"service_secret"`
	LicenseKey    string `yaml:"license_key"`

	// OAuth2 credentials (Yahoo! Shopping).
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SellerID     string `yaml:"seller_id"`
	TokenFile    string `yaml:"token_file"`
	// SignKeyFile optionally holds a PEM public key used to attach an
	// encrypted request-signature header.
	SignKeyFile string `yaml:"sign_key_file"`

	// Bearer-token credentials (Mercari Shops).
	AccessToken string `yaml:"access_token"`

	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`

	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelayRaw  string        `yaml:"retry_delay"`
	RetryDelay     time.Duration `yaml:"-"`
}

// ConnectorBuilder constructs a Connector from one connection config.
type ConnectorBuilder func(cfg *ConnectionConfig) (Connector, error)

var (
	connectorRegistry   = make(map[string]ConnectorBuilder)
	connectorRegistryMu sync.RWMutex
)

// RegisterConnector registers a marketplace connector constructor under a
// kind name. Marketplace packages register themselves from init().
func RegisterConnector(kind string, builder ConnectorBuilder) {
	connectorRegistryMu.Lock()
	defer connectorRegistryMu.Unlock()
	connectorRegistry[strings.ToLower(strings.TrimSpace(kind))] = builder
}

func lookupConnectorBuilder(kind string) (ConnectorBuilder, bool) {
	connectorRegistryMu.RLock()
	defer connectorRegistryMu.RUnlock()
	builder, ok := connectorRegistry[strings.ToLower(strings.TrimSpace(kind))]
	return builder, ok
}

// LoadConfig reads connection configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open marketplace config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read marketplace config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal marketplace config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	for i, conn := range c.Connections {
		if conn == nil {
			conn = &ConnectionConfig{}
			c.Connections[i] = conn
		}
		conn.expandEnv()
		if err := conn.parseDurations(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConnectionConfig) expandEnv() {
	c.Kind = strings.TrimSpace(os.ExpandEnv(c.Kind))
	c.Name = strings.TrimSpace(os.ExpandEnv(c.Name))
	c.ServiceSecret = strings.TrimSpace(os.ExpandEnv(c.ServiceSecret))
	c.LicenseKey = strings.TrimSpace(os.ExpandEnv(c.LicenseKey))
	c.ClientID = strings.TrimSpace(os.ExpandEnv(c.ClientID))
	c.ClientSecret = strings.TrimSpace(os.ExpandEnv(c.ClientSecret))
	c.SellerID = strings.TrimSpace(os.ExpandEnv(c.SellerID))
	c.TokenFile = strings.TrimSpace(os.ExpandEnv(c.TokenFile))
	c.SignKeyFile = strings.TrimSpace(os.ExpandEnv(c.SignKeyFile))
	c.AccessToken = strings.TrimSpace(os.ExpandEnv(c.AccessToken))
	c.BaseURL = strings.TrimSpace(os.ExpandEnv(c.BaseURL))
	c.TokenURL = strings.TrimSpace(os.ExpandEnv(c.TokenURL))
	c.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.HTTPTimeoutRaw))
	c.RetryDelayRaw = strings.TrimSpace(os.ExpandEnv(c.RetryDelayRaw))
}

func (c *ConnectionConfig) parseDurations() error {
	if c.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(c.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("marketplace connection %s: invalid http_timeout %q: %w", c.Name, c.HTTPTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("marketplace connection %s: http_timeout must be positive, got %s", c.Name, d)
		}
		c.HTTPTimeout = d
	}
	if c.RetryDelayRaw != "" {
		d, err := time.ParseDuration(c.RetryDelayRaw)
		if err != nil {
			return fmt.Errorf("marketplace connection %s: invalid retry_delay %q: %w", c.Name, c.RetryDelayRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("marketplace connection %s: retry_delay must be positive, got %s", c.Name, d)
		}
		c.RetryDelay = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return fmt.Errorf("marketplace config: connections cannot be empty")
	}
	names := make(map[string]struct{}, len(c.Connections))
	for _, conn := range c.Connections {
		if strings.TrimSpace(conn.Name) == "" {
			return fmt.Errorf("marketplace config: connection name cannot be empty")
		}
		if _, dup := names[conn.Name]; dup {
			return fmt.Errorf("marketplace config: duplicate connection name %q", conn.Name)
		}
		names[conn.Name] = struct{}{}
		if strings.TrimSpace(conn.Kind) == "" {
			return fmt.Errorf("marketplace config: connection %s must specify kind", conn.Name)
		}
		if _, ok := lookupConnectorBuilder(conn.Kind); !ok {
			return fmt.Errorf("marketplace config: connection %s has unsupported kind %q", conn.Name, conn.Kind)
		}
	}
	return nil
}

// RetryPolicy derives the connection's retry policy, falling back to package
// defaults where the config is silent.
func (c *ConnectionConfig) RetryPolicy() RetryPolicy {
	policy := DefaultRetryPolicy()
	if c.MaxRetries > 0 {
		policy.MaxAttempts = c.MaxRetries
	}
	if c.RetryDelay > 0 {
		policy.BaseDelay = c.RetryDelay
	}
	return policy
}

// BuildConnectors instantiates one connector per configured connection.
// Construction failures (missing secrets) are fatal and abort the build.
func (c *Config) BuildConnectors() ([]Connector, error) {
	connectors := make([]Connector, 0, len(c.Connections))
	for _, conn := range c.Connections {
		builder, ok := lookupConnectorBuilder(conn.Kind)
		if !ok {
			return nil, fmt.Errorf("marketplace connection %s: unsupported kind %q", conn.Name, conn.Kind)
		}
		connector, err := builder(conn)
		if err != nil {
			return nil, fmt.Errorf("marketplace connection %s: %w", conn.Name, err)
		}
		connectors = append(connectors, connector)
	}
	return connectors, nil
}
