package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if _, err := cfg.Owner(); err != nil {
		t.Fatalf("generated owner address invalid: %v", err)
	}

	// A second load reads the same identities back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.OwnerAddress != cfg.OwnerAddress {
		t.Fatalf("owner identity not stable across loads")
	}
}

func TestValidateRejectsMalformedAddress(t *testing.T) {
	cfg := &Config{
		DataDir:        "./data",
		BlobPath:       "./data/blobs.db",
		OwnerAddress:   "not-bech32",
		FactoryAddress: "also-bad",
		AggregatorAddr: "nope",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for malformed addresses")
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty DataDir")
	}
}
