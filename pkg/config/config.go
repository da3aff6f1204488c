package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseConfigFlags parses command-line flags.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "debug HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path from flags and loads the YAML
// file. Returns the parsed config and whether the file was present.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfg, err := Load(flags.Config)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads QUORUM_* environment variables into a fresh Config
// and reports whether any were used.
func ParseConfigEnvs() (*Config, bool) {
	envCfg := &Config{}
	used := false

	if v := os.Getenv("QUORUM_SERVER_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	}
	if v := os.Getenv("QUORUM_DB_PATH"); v != "" {
		used = true
		envCfg.Server.DBPath = v
	}
	if v := os.Getenv("QUORUM_INBOX_ADDRESS"); v != "" {
		used = true
		envCfg.Server.InboxAddress = v
	}
	if v := os.Getenv("QUORUM_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			used = true
			envCfg.Server.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("QUORUM_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			used = true
			envCfg.Server.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("QUORUM_SYNC_MAX_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			used = true
			envCfg.Sync.MaxMessages = n
		}
	}
	if v := os.Getenv("QUORUM_CLEANUP_CRON"); v != "" {
		used = true
		envCfg.Cleanup.Enabled = true
		envCfg.Cleanup.Cron = v
	}
	if v := os.Getenv("QUORUM_LOG_LEVEL"); v != "" {
		used = true
		envCfg.Logging.Level = v
	}
	if v := os.Getenv("QUORUM_LOG_FORMAT"); v != "" {
		used = true
		envCfg.Logging.Format = v
	}
	return envCfg, used
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// LoadEffectiveConfig decides which single source wins. An explicit
// --config requires the file to exist and uses it; explicit addr/db flags
// win next; otherwise a present config file, then env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, os.ErrNotExist
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] || flags.Set["db"] {
		out := &Config{}
		*out = *fileCfg
		addr := fileCfg.Addr()
		if flags.Set["addr"] {
			addr = flags.Addr
			if h, _, err := net.SplitHostPort(flags.Addr); err == nil {
				out.Server.Address = h
			} else {
				out.Server.Address = flags.Addr
			}
			out.Server.Port = parsePortFromAddr(flags.Addr)
		}
		dbPath := flags.DB
		if !flags.Set["db"] && strings.TrimSpace(fileCfg.Server.DBPath) != "" {
			dbPath = fileCfg.Server.DBPath
		}
		out.Server.DBPath = dbPath
		res.Config = out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = envCfg.Server.DBPath
	res.Source = "env"
	return res, nil
}

// parsePortFromAddr extracts the port integer from a host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
