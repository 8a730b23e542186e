package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"prism/core/types"
)

// Config captures the node-level settings for prismd. Actor addresses are
// hex-encoded 20-byte identities; the zero address disables the optional
// collaborators (legacy pool, AMM, voting).
type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	NetworkName          string `toml:"NetworkName"`
	Environment          string `toml:"Environment"`
	AdminAddress         string `toml:"AdminAddress"`
	RouterAddress        string `toml:"RouterAddress"`
	StorageCoreAddress   string `toml:"StorageCoreAddress"`
	PoolLogicAddress     string `toml:"PoolLogicAddress"`
	MerchantLogicAddress string `toml:"MerchantLogicAddress"`
	LegacyPoolAddress    string `toml:"LegacyPoolAddress"`
	AMMAddress           string `toml:"AMMAddress"`
	VotingAddress        string `toml:"VotingAddress"`
	MaxContextAgeMillis  uint64 `toml:"MaxContextAgeMillis"`
	BlockIntervalMillis  uint64 `toml:"BlockIntervalMillis"`
	RPCTokenEnv          string `toml:"RPCTokenEnv"`
	LogFile              string `toml:"LogFile"`
	LogMaxSizeMB         int    `toml:"LogMaxSizeMB"`
	LogMaxBackups        int    `toml:"LogMaxBackups"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s contains unknown fields: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "prism-local"
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./prism-data"
	}
	if c.BlockIntervalMillis == 0 {
		c.BlockIntervalMillis = 3000
	}
	if strings.TrimSpace(c.RPCTokenEnv) == "" {
		c.RPCTokenEnv = "PRISM_RPC_TOKEN"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 5
	}
}

// Validate checks that the required actor identities are present and parse as
// addresses. Optional collaborators may be empty.
func (c *Config) Validate() error {
	required := map[string]string{
		"AdminAddress":         c.AdminAddress,
		"RouterAddress":        c.RouterAddress,
		"StorageCoreAddress":   c.StorageCoreAddress,
		"PoolLogicAddress":     c.PoolLogicAddress,
		"MerchantLogicAddress": c.MerchantLogicAddress,
	}
	for field, value := range required {
		addr, err := parseField(field, value, true)
		if err != nil {
			return err
		}
		if addr.IsZero() {
			return fmt.Errorf("%s must not be the zero address", field)
		}
	}
	optional := map[string]string{
		"LegacyPoolAddress": c.LegacyPoolAddress,
		"AMMAddress":        c.AMMAddress,
		"VotingAddress":     c.VotingAddress,
	}
	for field, value := range optional {
		if _, err := parseField(field, value, false); err != nil {
			return err
		}
	}
	return nil
}

// Address parses a configured identity. Empty values yield the zero address.
func Address(value string) (types.Address, error) {
	if strings.TrimSpace(value) == "" {
		return types.ZeroAddress, nil
	}
	return types.ParseAddress(value)
}

func parseField(field, value string, required bool) (types.Address, error) {
	if strings.TrimSpace(value) == "" {
		if required {
			return types.ZeroAddress, fmt.Errorf("%s is required", field)
		}
		return types.ZeroAddress, nil
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// createDefault creates and saves a default configuration file. The actor
// addresses are deterministic placeholders an operator is expected to replace.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:           ":8080",
		DataDir:              "./prism-data",
		NetworkName:          "prism-local",
		AdminAddress:         "0x0000000000000000000000000000000000000a01",
		RouterAddress:        "0x0000000000000000000000000000000000000001",
		StorageCoreAddress:   "0x0000000000000000000000000000000000000002",
		PoolLogicAddress:     "0x0000000000000000000000000000000000000003",
		MerchantLogicAddress: "0x0000000000000000000000000000000000000004",
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
