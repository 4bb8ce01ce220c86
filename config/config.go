package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"chronicle/crypto"
)

// Config carries the daemon's runtime settings.
type Config struct {
	RPCAddress       string `toml:"RPCAddress"`
	DataDir          string `toml:"DataDir"`
	BlobPath         string `toml:"BlobPath"`
	NetworkName      string `toml:"NetworkName"`
	OwnerAddress     string `toml:"OwnerAddress"`
	FactoryAddress   string `toml:"FactoryAddress"`
	AggregatorAddr   string `toml:"AggregatorAddress"`
	LogEnvironment   string `toml:"LogEnvironment"`
	MetricsNamespace string `toml:"MetricsNamespace"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every configured address decodes and the storage
// locations are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if strings.TrimSpace(c.BlobPath) == "" {
		return fmt.Errorf("config: BlobPath must not be empty")
	}
	for field, value := range map[string]string{
		"OwnerAddress":      c.OwnerAddress,
		"FactoryAddress":    c.FactoryAddress,
		"AggregatorAddress": c.AggregatorAddr,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s must not be empty", field)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", field, err)
		}
	}
	return nil
}

// Owner returns the decoded aggregator owner address.
func (c *Config) Owner() (crypto.Address, error) {
	return crypto.DecodeAddress(c.OwnerAddress)
}

// Factory returns the decoded factory address.
func (c *Config) Factory() (crypto.Address, error) {
	return crypto.DecodeAddress(c.FactoryAddress)
}

// Aggregator returns the decoded aggregator address.
func (c *Config) Aggregator() (crypto.Address, error) {
	return crypto.DecodeAddress(c.AggregatorAddr)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8655"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "chronicle-local"
	}
	if strings.TrimSpace(cfg.MetricsNamespace) == "" {
		cfg.MetricsNamespace = "chronicle"
	}
}

func createDefault(path string) (*Config, error) {
	// Fresh installs get generated owner/factory/aggregator identities; the
	// operator replaces them before joining a shared network.
	owner, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	factory, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	aggregator, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:     "127.0.0.1:8655",
		DataDir:        "./chronicle-data",
		BlobPath:       "./chronicle-data/blobs.db",
		NetworkName:    "chronicle-local",
		OwnerAddress:   owner.PubKey().Address().String(),
		FactoryAddress: factory.PubKey().Address().String(),
		AggregatorAddr: aggregator.PubKey().Address().String(),
	}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
