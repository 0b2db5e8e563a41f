// Package config provides configuration loading for colnorm.
// Rule tables are loaded once and passed into components as an immutable
// value; no component reads ambient global state.
package config

import "fmt"

// Config is the top-level service configuration.
type Config struct {
	// Service is the service name reported by the heartbeat endpoint.
	Service string `koanf:"service"`

	Verbose bool `koanf:"verbose"`

	Server    ServerConfig    `koanf:"server"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Audit     AuditConfig     `koanf:"audit"`
	Rules     Rules           `koanf:"rules"`
	Profile   ProfileConfig   `koanf:"profile"`
}

// ServerConfig holds HTTP trigger-surface settings.
type ServerConfig struct {
	Port int `koanf:"port"`
}

// WarehouseConfig holds the warehouse connection settings.
type WarehouseConfig struct {
	// Driver is the database/sql driver name (default "pgx").
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// AuditConfig holds the audit-sink settings. Generated SQL is written here,
// keyed by destination table, before any statement is executed.
type AuditConfig struct {
	Dir string `koanf:"dir"`
}

// ProfileConfig holds settings for the data-quality heuristics.
type ProfileConfig struct {
	// BatchSize bounds the number of columns inspected per generated query.
	BatchSize int `koanf:"batch_size"`

	// FalseArrayValues are the only values (besides NULL) a false-array
	// column may contain.
	FalseArrayValues []string `koanf:"false_array_values"`

	// Reference maps a table name to its hand-curated false-array column
	// list.
	Reference map[string][]string `koanf:"reference"`

	// UseReference switches false-array detection from the computational
	// scan to the curated reference above.
	UseReference bool `koanf:"use_reference"`
}

// Rename is a hand-curated exact source-to-target column rename.
type Rename struct {
	Source string `koanf:"source"`
	Target string `koanf:"target"`
}

// Transform is a table-scoped SQL snippet for columns the grammar cannot
// resolve. The template supports {source}, {target} and indexed placeholders
// such as {source[0]} or {target[1]}.
type Transform struct {
	Source   []string `koanf:"source"`
	Target   []string `koanf:"target"`
	Template string   `koanf:"template"`
}

// Rules is the immutable rule-table value injected into the classifier and
// renderers.
type Rules struct {
	// PrimaryKey is the participant-key column, preserved verbatim through
	// every transform (case included).
	PrimaryKey string `koanf:"primary_key"`

	// AllowedNames are whole names that pass purity regardless of tokens.
	AllowedNames []string `koanf:"allowed_names"`

	// ForbiddenNames are whole names dropped from every table.
	ForbiddenNames []string `koanf:"forbidden_names"`

	// ExcludedSubstrings mark columns to drop entirely (data-type-conflict
	// markers and known-misnamed markers).
	ExcludedSubstrings []string `koanf:"excluded_substrings"`

	// AllowedTokens are non-concept-ID tokens purity accepts.
	AllowedTokens []string `koanf:"allowed_tokens"`

	// SubstringsToFix are stripped from output column names.
	SubstringsToFix []string `koanf:"substrings_to_fix"`

	// ExceptionTokens maps known stray tokens to the concept ID that
	// should replace them, used to suggest repairs for impure names.
	ExceptionTokens map[string]string `koanf:"exception_tokens"`

	// OneOffRenames maps a table name to its hand-maintained rename list.
	OneOffRenames map[string][]Rename `koanf:"one_off_renames"`

	// CustomTransforms maps a table name to its transform templates.
	CustomTransforms map[string][]Transform `koanf:"custom_transforms"`
}

// RenamesFor returns the one-off renames for a table identifier.
func (r *Rules) RenamesFor(table string) []Rename {
	return r.OneOffRenames[table]
}

// TransformsFor returns the custom transforms for a table identifier.
func (r *Rules) TransformsFor(table string) []Transform {
	return r.CustomTransforms[table]
}

// Validate checks settings no component can run without.
func (c *Config) Validate() error {
	if c.Rules.PrimaryKey == "" {
		return fmt.Errorf("rules.primary_key is required")
	}
	if c.Profile.BatchSize <= 0 {
		return fmt.Errorf("profile.batch_size must be positive, got %d", c.Profile.BatchSize)
	}
	return nil
}
