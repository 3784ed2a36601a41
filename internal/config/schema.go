package config

// Config is the top-level YAML structure.
type Config struct {
	Version string      `yaml:"version"`
	Model   ModelConf   `yaml:"model"`
	Scoring ScoringConf `yaml:"scoring"`
	History HistoryConf `yaml:"history"`
	Factors []FactorDef `yaml:"factors"`
	Logging LoggingConf `yaml:"logging"`
	Tracing TracingConf `yaml:"tracing"`
}

// ModelConf locates the classifier artifact. Read once at startup.
type ModelConf struct {
	Path string `yaml:"path"`
}

// ScoringConf holds hot-reloadable decision settings.
type ScoringConf struct {
	// FraudThreshold flags is_fraud at probability >= this value.
	FraudThreshold float64 `yaml:"fraud_threshold"`
}

// HistoryConf locates the prediction history file. Read once at startup.
type HistoryConf struct {
	Path string `yaml:"path"`
}

// FactorDef declares one explanatory factor; When is optional.
type FactorDef struct {
	Feature string `yaml:"feature"`
	Impact  string `yaml:"impact"`
	When    string `yaml:"when,omitempty"`
}

type LoggingConf struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type TracingConf struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty = disabled
}
