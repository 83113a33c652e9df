package main

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/urfave/cli/v3"
)

// Config holds the editor configuration, loadable from environment variables
// (CATALOG_ prefix) or YAML config files. Command line flags override both.
type Config struct {
	BackendURL    string        `default:"http://localhost:8080" usage:"Catalog API base URL"`
	Timeout       time.Duration `default:"0" usage:"Per-request timeout (0 uses the transport default)"`
	PreviewMaxAge time.Duration `default:"30m" usage:"Lifetime of local image previews"`
	Debug         bool          `default:"false" usage:"Log every request"`
}

// LoadConfig loads the file and environment layers and applies the global
// flags of c on top.
func LoadConfig(c *cli.Command) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "CATALOG",
		Files:     []string{"catalog.yaml", "/etc/catalog/catalog.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if c.IsSet("backend") {
		cfg.BackendURL = c.String("backend")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend URL is required: set --backend or CATALOG_BACKEND_URL")
	}
	return &cfg, nil
}
