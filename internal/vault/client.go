package vault

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

type Option func(*config)

type config struct {
	address string
	token   string
}

// Client reads database credentials out of Vault so they never have to live
// in the backup configuration file.
type Client struct {
	api    *vault.Client
	config *config
}

// Credentials as stored under the configured KV path.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func WithAddress(address string) Option {
	return func(c *config) {
		c.address = address
	}
}

func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// NewClient creates and initializes a Vault Client using provided options.
// Address and token default to VAULT_ADDR and VAULT_TOKEN.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &config{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}

	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}
	if cfg.token != "" {
		api.SetToken(cfg.token)
	}

	return &Client{api: api, config: cfg}, nil
}

// DatabaseCredentials reads the secret at path and decodes its username and
// password fields. Both KV v1 and v2 response shapes are accepted.
func (c *Client) DatabaseCredentials(ctx context.Context, path string) (Credentials, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil {
		return Credentials{}, fmt.Errorf("no data found at path: %s", path)
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}

	var creds Credentials
	if err := mapstructure.Decode(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials at %s: %w", path, err)
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("incomplete credentials at path: %s", path)
	}
	return creds, nil
}
