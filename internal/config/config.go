// Package config loads the network's six configuration constants
// (spec.md §6) from, in priority order, built-in defaults, at most one
// config file (TOML, YAML or Java-style properties, chosen by its
// extension), and finally environment variables. The file and the
// environment may be absent; later layers override earlier ones only
// for the keys they actually set.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds the tunables every miner and the bootstrap registry
// need.
type Config struct {
	BootstrapIP      string `toml:"bootstrap_ip" yaml:"bootstrap_ip"`
	BootstrapPort    int    `toml:"bootstrap_port" yaml:"bootstrap_port"`
	MinerPorts       []int  `toml:"miner_ports" yaml:"miner_ports"`
	TransPerBlock    int    `toml:"trans_per_block" yaml:"trans_per_block"`
	MiningDifficulty int    `toml:"mining_difficulty" yaml:"mining_difficulty"`
	QueuedConnection int    `toml:"queued_connection" yaml:"queued_connection"`
}

// Default returns the demo-friendly defaults the original source
// shipped with: difficulty 2, two transactions per block.
func Default() Config {
	return Config{
		BootstrapIP:      "127.0.0.1",
		BootstrapPort:    5500,
		MinerPorts:       []int{6001, 6002, 6003},
		TransPerBlock:    2,
		MiningDifficulty: 2,
		QueuedConnection: 10,
	}
}

// Load starts from Default, then applies path (if non-empty, format
// inferred from its extension: .toml, .yaml/.yml, or .properties),
// then applies environment variable overrides
// (DUSKNET_BOOTSTRAP_IP, DUSKNET_BOOTSTRAP_PORT, DUSKNET_MINER_PORTS,
// DUSKNET_TRANS_PER_BLOCK, DUSKNET_MINING_DIFFICULTY,
// DUSKNET_QUEUED_CONNECTION).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	switch ext := strings.ToLower(extOf(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return errors.Wrap(err, "config: decode toml")
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "config: read yaml")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return errors.Wrap(err, "config: decode yaml")
		}
	case ".properties":
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return errors.Wrap(err, "config: read properties")
		}
		applyProperties(cfg, p)
	default:
		return errors.Errorf("config: unrecognized config file extension %q", ext)
	}
	return nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}

func applyProperties(cfg *Config, p *properties.Properties) {
	if v, ok := p.Get("bootstrap_ip"); ok {
		cfg.BootstrapIP = v
	}
	if v, ok := p.Get("bootstrap_port"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BootstrapPort = n
		}
	}
	if v, ok := p.Get("miner_ports"); ok {
		cfg.MinerPorts = parseIntList(v)
	}
	if v, ok := p.Get("trans_per_block"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TransPerBlock = n
		}
	}
	if v, ok := p.Get("mining_difficulty"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MiningDifficulty = n
		}
	}
	if v, ok := p.Get("queued_connection"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueuedConnection = n
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DUSKNET_BOOTSTRAP_IP"); v != "" {
		cfg.BootstrapIP = v
	}
	if v := os.Getenv("DUSKNET_BOOTSTRAP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BootstrapPort = n
		}
	}
	if v := os.Getenv("DUSKNET_MINER_PORTS"); v != "" {
		cfg.MinerPorts = parseIntList(v)
	}
	if v := os.Getenv("DUSKNET_TRANS_PER_BLOCK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TransPerBlock = n
		}
	}
	if v := os.Getenv("DUSKNET_MINING_DIFFICULTY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MiningDifficulty = n
		}
	}
	if v := os.Getenv("DUSKNET_QUEUED_CONNECTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueuedConnection = n
		}
	}
}

func parseIntList(v string) []int {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
