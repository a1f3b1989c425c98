package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	arcsolana "github.com/brojonat/arcadewallet/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables
// (optionally layered over a YAML file named by CONFIG_FILE).
// All required fields are validated at startup to ensure fail-fast behavior.
// A Config is never modified after Load returns.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// NATS configuration (empty disables event publishing)
	NATSURL string

	// Solana network configuration
	SolanaRPCURL string
	RPCRateLimit int

	// On-chain addresses
	ProgramAddress             solana.PublicKey
	ScoreAccountAddress        solana.PublicKey
	TokenProgramAddress        solana.PublicKey
	MintAddress                solana.PublicKey
	ProgramTokenAccountAddress solana.PublicKey
	ProgramAuthoritySeed       string

	// Confirmation policy
	ConfirmationLevel        string
	ConfirmationTimeout      time.Duration
	ConfirmationPollInterval time.Duration
}

// fileConfig mirrors the recognized options for the optional YAML file.
type fileConfig struct {
	ServerAddr                 string `yaml:"server_addr"`
	LogLevel                   string `yaml:"log_level"`
	NATSURL                    string `yaml:"nats_url"`
	SolanaRPCURL               string `yaml:"solana_rpc_url"`
	RPCRateLimit               string `yaml:"rpc_rate_limit"`
	ProgramAddress             string `yaml:"game_program_address"`
	ScoreAccountAddress        string `yaml:"score_account_address"`
	TokenProgramAddress        string `yaml:"token_program_address"`
	MintAddress                string `yaml:"token_mint_address"`
	ProgramTokenAccountAddress string `yaml:"program_token_account_address"`
	ProgramAuthoritySeed       string `yaml:"program_authority_seed"`
	ConfirmationLevel          string `yaml:"confirmation_level"`
	ConfirmationTimeout        string `yaml:"confirmation_timeout"`
	ConfirmationPollInterval   string `yaml:"confirmation_poll_interval"`
}

// Load reads configuration from environment variables and validates all required fields.
// If CONFIG_FILE is set, the YAML file supplies base values that the environment overrides.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", orDefault(file.ServerAddr, ":8080"))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", orDefault(file.LogLevel, "info"))

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", file.NATSURL)

	// Solana network configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", orDefault(file.SolanaRPCURL, rpc.DevNet_RPC))

	rateLimit, err := parseInt("RPC_RATE_LIMIT", orDefault(file.RPCRateLimit, "0"))
	if err != nil {
		errs = append(errs, err)
	} else if rateLimit < 0 {
		errs = append(errs, fmt.Errorf("RPC_RATE_LIMIT cannot be negative"))
	} else {
		cfg.RPCRateLimit = rateLimit
	}

	// On-chain addresses
	cfg.ProgramAddress = parseAddress("GAME_PROGRAM_ADDRESS", file.ProgramAddress, "", &errs)
	cfg.ScoreAccountAddress = parseAddress("SCORE_ACCOUNT_ADDRESS", file.ScoreAccountAddress, "", &errs)
	cfg.TokenProgramAddress = parseAddress("TOKEN_PROGRAM_ADDRESS", file.TokenProgramAddress, solana.TokenProgramID.String(), &errs)
	cfg.MintAddress = parseAddress("TOKEN_MINT_ADDRESS", file.MintAddress, "", &errs)
	cfg.ProgramTokenAccountAddress = parseAddress("PROGRAM_TOKEN_ACCOUNT_ADDRESS", file.ProgramTokenAccountAddress, "", &errs)
	cfg.ProgramAuthoritySeed = getEnvOrDefault("PROGRAM_AUTHORITY_SEED", orDefault(file.ProgramAuthoritySeed, "authority"))

	// Confirmation policy
	cfg.ConfirmationLevel = getEnvOrDefault("CONFIRMATION_LEVEL", orDefault(file.ConfirmationLevel, "confirmed"))
	if _, err := arcsolana.ParseConfirmationLevel(cfg.ConfirmationLevel); err != nil {
		errs = append(errs, fmt.Errorf("CONFIRMATION_LEVEL must be one of none, processed, confirmed, finalized: %w", err))
	}

	timeout, err := parseDuration("CONFIRMATION_TIMEOUT", orDefault(file.ConfirmationTimeout, "60s"))
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmationTimeout = timeout
	}

	pollInterval, err := parseDuration("CONFIRMATION_POLL_INTERVAL", orDefault(file.ConfirmationPollInterval, "500ms"))
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmationPollInterval = pollInterval
	}

	if cfg.ConfirmationTimeout > 0 && cfg.ConfirmationPollInterval > cfg.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("CONFIRMATION_POLL_INTERVAL (%v) cannot be greater than CONFIRMATION_TIMEOUT (%v)",
			cfg.ConfirmationPollInterval, cfg.ConfirmationTimeout))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.ProgramAddress.IsZero() {
		errs = append(errs, fmt.Errorf("ProgramAddress is required"))
	}

	if c.ScoreAccountAddress.IsZero() {
		errs = append(errs, fmt.Errorf("ScoreAccountAddress is required"))
	}

	if c.TokenProgramAddress.IsZero() {
		errs = append(errs, fmt.Errorf("TokenProgramAddress is required"))
	}

	if c.MintAddress.IsZero() {
		errs = append(errs, fmt.Errorf("MintAddress is required"))
	}

	if c.ProgramTokenAccountAddress.IsZero() {
		errs = append(errs, fmt.Errorf("ProgramTokenAccountAddress is required"))
	}

	if c.ProgramAuthoritySeed == "" {
		errs = append(errs, fmt.Errorf("ProgramAuthoritySeed is required"))
	}

	if _, err := arcsolana.ParseConfirmationLevel(c.ConfirmationLevel); err != nil {
		errs = append(errs, fmt.Errorf("ConfirmationLevel is not recognized: %w", err))
	}

	if c.ConfirmationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmationTimeout must be positive"))
	}

	if c.ConfirmationPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmationPollInterval must be positive"))
	}

	if c.ConfirmationPollInterval > c.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("ConfirmationPollInterval cannot be greater than ConfirmationTimeout"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// loadFile reads the optional YAML config file. An empty path yields zero values.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("CONFIG_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("CONFIG_FILE: invalid yaml: %w", err)
	}
	return fc, nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

// parseAddress reads a base58 address from the environment (falling back to the
// file value, then defaultValue). Missing or malformed values are appended to errs.
func parseAddress(key, fileValue, defaultValue string, errs *[]error) solana.PublicKey {
	value := getEnvOrDefault(key, orDefault(fileValue, defaultValue))
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", key))
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid address %q: %w", key, value, err))
		return solana.PublicKey{}
	}
	return pk
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue string) (int, error) {
	value := getEnvOrDefault(key, defaultValue)
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
