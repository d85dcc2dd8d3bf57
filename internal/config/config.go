package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/memoreal/internal/identity"
)

// DefaultMintSymbol is the registry symbol used when a mint request names none.
const DefaultMintSymbol = "MCAP"

// Config holds application configuration.
type Config struct {
	// AuthorQuotaBytes caps the total record storage one author may reserve.
	// 0 means unlimited. Each capsule reserves capsule.RecordSize bytes.
	AuthorQuotaBytes int64 `json:"author_quota_bytes,omitempty"`

	// MintSymbol is the default symbol registered for minted collectibles.
	MintSymbol string `json:"mint_symbol,omitempty"`

	// MetadataProgram is the base58 id of the metadata registry namespace.
	// Empty means the built-in registry id.
	MetadataProgram string `json:"metadata_program,omitempty"`

	// KeypairPath is the signing keypair used by the CLI and MCP server.
	// Empty means <baseDir>/id.json.
	KeypairPath string `json:"keypair_path,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "capsule". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MintSymbol: DefaultMintSymbol,
	}
}

// ResolveMetadataProgram parses MetadataProgram, falling back to def when unset.
func (c *Config) ResolveMetadataProgram(def identity.PublicKey) (identity.PublicKey, error) {
	if strings.TrimSpace(c.MetadataProgram) == "" {
		return def, nil
	}
	return identity.ParsePublicKey(c.MetadataProgram)
}

// ResolveKeypairPath returns KeypairPath or the default location under baseDir.
func (c *Config) ResolveKeypairPath(baseDir string) string {
	if c.KeypairPath != "" {
		return c.KeypairPath
	}
	return filepath.Join(baseDir, "id.json")
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.memoreal.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.memoreal) and repo (.memoreal) directories.
// Repo config is found by walking upward from startDir to find the nearest .memoreal/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	// Walk upward from startDir to find repo config
	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .memoreal/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".memoreal", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.AuthorQuotaBytes = overlay.AuthorQuotaBytes
	if result.AuthorQuotaBytes == 0 {
		result.AuthorQuotaBytes = base.AuthorQuotaBytes
	}

	result.MintSymbol = firstNonEmpty(overlay.MintSymbol, base.MintSymbol)
	result.MetadataProgram = firstNonEmpty(overlay.MetadataProgram, base.MetadataProgram)
	result.KeypairPath = firstNonEmpty(overlay.KeypairPath, base.KeypairPath)

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
