package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `yaml:"ca_cert"`   // CA certificate PEM path
	NodeCert string `yaml:"node_cert"` // node certificate PEM path
	NodeKey  string `yaml:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GenesisConfig names the chain this node belongs to. Unlike the
// teacher's balance-ledger genesis, a voting chain has no alloc map —
// the genesis block (chain.NewGenesisBlock) carries no transactions.
type GenesisConfig struct {
	ChainName string `yaml:"chain_name"`
}

// Config holds all node configuration. Grounded on
// tolelom-tolchain/config/config.go's struct shape and Validate() pass,
// reloaded as YAML (SPEC_FULL.md §1) instead of JSON.
type Config struct {
	NodeID       string        `yaml:"node_id"`
	DataDir      string        `yaml:"data_dir"`
	RPCPort      int           `yaml:"rpc_port"`
	P2PPort      int           `yaml:"p2p_port"`
	ValidatorKey string        `yaml:"validator_key"` // hex PKCS1 RSA public key; empty → this node doesn't validate
	Validators   []string      `yaml:"validators"`    // hex PKCS1 RSA public keys of the permissioned roster
	Genesis      GenesisConfig `yaml:"genesis"`
	SeedPeers    []SeedPeer    `yaml:"seed_peers,omitempty"`
	TLS          *TLSConfig    `yaml:"tls,omitempty"`
	RPCAuthToken string        `yaml:"rpc_auth_token,omitempty"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:  "node0",
		DataDir: "./data",
		RPCPort: 8545,
		P2PPort: 30303,
		Genesis: GenesisConfig{
			ChainName: "tolchain-dev",
		},
	}
}

// Load reads a YAML config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Genesis.ChainName == "" {
		return fmt.Errorf("genesis.chain_name must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if len(c.Validators) == 0 {
		return fmt.Errorf("validators list must not be empty")
	}
	for i, v := range c.Validators {
		if _, err := hex.DecodeString(v); err != nil {
			return fmt.Errorf("validators[%d]: must be hex-encoded, got %q", i, v)
		}
	}
	if c.ValidatorKey != "" {
		found := false
		for _, v := range c.Validators {
			if v == c.ValidatorKey {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("validator_key %q is not present in the validators roster", c.ValidatorKey)
		}
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
