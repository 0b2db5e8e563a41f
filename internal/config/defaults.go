package config

// Default values applied before the config file, environment, and flags.
const (
	DefaultService   = "colnorm"
	DefaultPort      = 8080
	DefaultDriver    = "pgx"
	DefaultAuditDir  = "audit"
	DefaultBatchSize = 500

	// DefaultPrimaryKey is the participant key shared by every survey
	// table. Its case is canonical and preserved through all transforms.
	DefaultPrimaryKey = "Connect_ID"
)

// defaultMap returns the confmap defaults loaded at lowest priority.
func defaultMap() map[string]interface{} {
	return map[string]interface{}{
		"service":            DefaultService,
		"verbose":            false,
		"server.port":        DefaultPort,
		"warehouse.driver":   DefaultDriver,
		"audit.dir":          DefaultAuditDir,
		"profile.batch_size": DefaultBatchSize,
		"rules.primary_key":  DefaultPrimaryKey,
	}
}

// applyRuleDefaults fills empty rule lists with the stock rule tables.
// A config file that sets any of these lists replaces the default wholesale;
// lists are not merged.
func applyRuleDefaults(cfg *Config) {
	r := &cfg.Rules
	if r.AllowedNames == nil {
		r.AllowedNames = []string{r.PrimaryKey, "token", "uid"}
	}
	if r.ForbiddenNames == nil {
		r.ForbiddenNames = []string{"treatmenttype", "unnamed_0"}
	}
	if r.ExcludedSubstrings == nil {
		// Data-type-conflict markers produced by the flattening ETL.
		r.ExcludedSubstrings = []string{"_string", "_integer", "_entity", "_sha"}
	}
	if r.AllowedTokens == nil {
		r.AllowedTokens = []string{"num", "state", "provided"}
	}
	if r.SubstringsToFix == nil {
		r.SubstringsToFix = []string{"_num", "state_"}
	}

	p := &cfg.Profile
	if p.FalseArrayValues == nil {
		p.FalseArrayValues = []string{"[]", "[178420302]", "[958239616]"}
	}
}
