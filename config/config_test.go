package config

import (
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Validators = []string{"deadbeef", "cafebabe"}
	cfg.ValidatorKey = "deadbeef"
	return cfg
}

func TestDefaultConfigNeedsValidators(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("DefaultConfig has no validators and should fail validation")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("well-formed config should validate, got %v", err)
	}
}

func TestValidateRejectsSamePorts(t *testing.T) {
	cfg := validConfig()
	cfg.P2PPort = cfg.RPCPort
	if err := cfg.Validate(); err == nil {
		t.Error("identical rpc_port and p2p_port should fail validation")
	}
}

func TestValidateRejectsNonHexValidator(t *testing.T) {
	cfg := validConfig()
	cfg.Validators = append(cfg.Validators, "not-hex!!")
	if err := cfg.Validate(); err == nil {
		t.Error("a non-hex validator key should fail validation")
	}
}

func TestValidateRejectsValidatorKeyNotInRoster(t *testing.T) {
	cfg := validConfig()
	cfg.ValidatorKey = "0000"
	if err := cfg.Validate(); err == nil {
		t.Error("validator_key absent from validators should fail validation")
	}
}

func TestValidateRejectsPartialTLS(t *testing.T) {
	cfg := validConfig()
	cfg.TLS = &TLSConfig{CACert: "ca.pem"}
	if err := cfg.Validate(); err == nil {
		t.Error("a partially specified tls block should fail validation")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.SeedPeers = []SeedPeer{{Host: "10.0.0.2", Port: 30303}}
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NodeID != cfg.NodeID || loaded.Genesis.ChainName != cfg.Genesis.ChainName {
		t.Errorf("loaded config mismatch: got %+v", loaded)
	}
	if len(loaded.Validators) != len(cfg.Validators) {
		t.Errorf("validators: got %v want %v", loaded.Validators, cfg.Validators)
	}
	if len(loaded.SeedPeers) != 1 || loaded.SeedPeers[0].Host != "10.0.0.2" {
		t.Errorf("seed peers did not round-trip: %+v", loaded.SeedPeers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
