package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"equiminer/pkg/solver/factory"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "EQUIMINER_"

// Config is the process configuration
type Config struct {
	Solver factory.SolverConfig `json:"solver"`

	// Logging
	LogLevel string `json:"log_level"`
	LogDir   string `json:"log_dir"`

	// JournalPath is the bbolt share journal; empty disables it
	JournalPath string `json:"journal_path"`

	// Listen addresses; empty disables the server
	APIAddr string `json:"api_addr"`
	RPCAddr string `json:"rpc_addr"`

	// SpeedInterval is the speed report period in seconds
	SpeedInterval int `json:"speed_interval"`

	// SinkBuffer is the submission queue size
	SinkBuffer int `json:"sink_buffer"`

	// BenchIterations is the nonce count for bench mode
	BenchIterations int `json:"bench_iterations"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Solver:          *factory.DefaultSolverConfig(),
		LogLevel:        "info",
		LogDir:          defaultLogDir(),
		APIAddr:         "127.0.0.1:8080",
		SpeedInterval:   60,
		SinkBuffer:      64,
		BenchIterations: 100,
	}
}

func defaultLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "logs"
	}
	return filepath.Join(homeDir, ".equiminer", "logs")
}

// Paths returns the configuration file locations searched by Find
func Paths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		"./equiminer.json",
		filepath.Join(homeDir, ".equiminer", "config.json"),
		"/etc/equiminer/config.json",
	}
}

// Find returns the first existing path from Paths, or "".
func Find() string {
	for _, p := range Paths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFromFile reads a JSON configuration. A missing file yields the
// defaults; fields absent from the file keep their default values.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile writes cfg as indented JSON, creating parent directories.
func SaveToFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadEnv loads the .env file found next to the working directory or the
// module root into the process environment. Variables already set win.
func LoadEnv() error {
	path := filepath.Join(findProjectRoot(), ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}

// ApplyEnv overrides cfg from EQUIMINER_* variables
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":   &cfg.LogLevel,
		"LOG_DIR":     &cfg.LogDir,
		"JOURNAL":     &cfg.JournalPath,
		"API_ADDR":    &cfg.APIAddr,
		"RPC_ADDR":    &cfg.RPCAddr,
		"CPU_METHOD":  &cfg.Solver.CPUMethod,
		"CUDA_METHOD": &cfg.Solver.CUDAMethod,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CPU_THREADS":      &cfg.Solver.CPUThreads,
		"SPEED_INTERVAL":   &cfg.SpeedInterval,
		"SINK_BUFFER":      &cfg.SinkBuffer,
		"BENCH_ITERATIONS": &cfg.BenchIterations,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	uints := map[string]*uint32{
		"N": &cfg.Solver.N,
		"K": &cfg.Solver.K,
	}
	for key, dst := range uints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = uint32(n)
	}
	return nil
}

// Load reads the file at path (or the first of Paths when empty), then
// the .env file, then the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Find()
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be fixed up later
func (c *Config) Validate() error {
	if _, err := c.Solver.Params(); err != nil {
		return err
	}
	if c.SinkBuffer < 1 {
		return fmt.Errorf("sink_buffer must be positive, got %d", c.SinkBuffer)
	}
	if c.SpeedInterval < 0 {
		return fmt.Errorf("speed_interval must not be negative, got %d", c.SpeedInterval)
	}
	return nil
}
