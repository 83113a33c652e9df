package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the stub server configuration, loadable from environment
// variables (CATALOG_STUB_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"Stub server listen address"`
	PublicURL      string `default:"" usage:"Base URL for uploaded image links (e.g. https://stub.example.com)" flag:"public-url"`
	MaxUploadBytes int64  `default:"10485760" usage:"Maximum multipart request size" flag:"max-upload-bytes"`
	MaxStoredBytes int64  `default:"268435456" usage:"Stored upload size above which the stub reports not ready (0 disables)" flag:"max-stored-bytes"`
	SeedDemo       bool   `default:"false" usage:"Start with a demo product" flag:"seed-demo"`
	Graceful       GracefulConfig
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATALOG_STUB",
		Files:     []string{"catalog-stub.yaml", "/etc/catalog/catalog-stub.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("max upload bytes must be positive")
	}
	return &cfg, nil
}

// applyPlatformDefaults honors a platform-provided PORT when the listen
// address was left at its default.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
