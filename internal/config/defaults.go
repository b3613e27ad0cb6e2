package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Backend     BackendConfig     `json:"backend"`
	Routing     RoutingConfig     `json:"routing"`
	Permissions PermissionsConfig `json:"permissions"`
	Security    SecurityConfig    `json:"security"`
	Features    FeaturesConfig    `json:"features"`
	Logging     LoggingConfig     `json:"logging"`
}

// BackendConfig configures the primary model backend and an optional
// fallback used when the primary times out or errors.
type BackendConfig struct {
	Kind        string  `json:"kind"`        // "ollama" or "gemini"
	Endpoint    string  `json:"endpoint"`    // Ollama HTTP endpoint
	Model       string  `json:"model"`       // Default: "llama3.1:8b"
	Temperature float64 `json:"temperature"` // Default: 0.7
	TopP        float64 `json:"top_p"`       // Default: 0.9

	// Router timeouts, in seconds
	HardTimeoutSeconds  int `json:"hard_timeout_seconds"`  // Default: 300
	StallTimeoutSeconds int `json:"stall_timeout_seconds"` // Default: 30

	Fallback *FallbackConfig `json:"fallback,omitempty"`
}

// FallbackConfig names the backend retried once after a primary failure.
type FallbackConfig struct {
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model"`
}

// RoutingConfig holds content-based model routing rules. Routing is a pure
// function of the user text and this static table.
type RoutingConfig struct {
	Enabled bool    `json:"enabled"`
	Routes  []Route `json:"routes,omitempty"`
}

// Route sends messages containing any keyword to a specific model.
type Route struct {
	Keywords []string `json:"keywords"`
	Model    string   `json:"model"`
}

// PermissionsConfig is the static permission policy snapshot.
type PermissionsConfig struct {
	AllowAppControl     bool               `json:"allow_app_control"`     // Default: true
	AllowFileOperations bool               `json:"allow_file_operations"` // Default: true
	AllowBrowserControl bool               `json:"allow_browser_control"` // Default: true
	AllowSystemCommands bool               `json:"allow_system_commands"` // Default: false
	RequireConfirmation ConfirmationConfig `json:"require_confirmation"`
}

// ConfirmationConfig flags which destructive kinds require confirmation.
type ConfirmationConfig struct {
	FileDeletion     bool `json:"file_deletion"`     // Default: true
	FileModification bool `json:"file_modification"` // Default: false
	AppClosure       bool `json:"app_closure"`       // Default: false
	SystemCommands   bool `json:"system_commands"`   // Default: true
}

// SecurityConfig controls the rollback ledger and sensitive paths.
type SecurityConfig struct {
	EnableRollback        bool     `json:"enable_rollback"`         // Default: true
	MaxRollbackOperations int      `json:"max_rollback_operations"` // Default: 10
	SensitivePaths        []string `json:"sensitive_paths,omitempty"`
}

// FeaturesConfig holds feature flags and tuning knobs.
type FeaturesConfig struct {
	MaxContextMessages int  `json:"max_context_messages"` // Default: 10
	EnableTaskPlanning bool `json:"enable_task_planning"` // Default: false
	MinAnswerLength    int  `json:"min_answer_length"`    // Default: 2
}

// LoggingConfig configures the session log.
type LoggingConfig struct {
	Level         string `json:"level"`          // Default: "info"
	File          string `json:"file"`           // Default: "" (stderr only)
	LogOperations bool   `json:"log_operations"` // Default: true
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:                "ollama",
			Endpoint:            "http://localhost:11434",
			Model:               "llama3.1:8b",
			Temperature:         0.7,
			TopP:                0.9,
			HardTimeoutSeconds:  300,
			StallTimeoutSeconds: 30,
		},
		Permissions: PermissionsConfig{
			AllowAppControl:     true,
			AllowFileOperations: true,
			AllowBrowserControl: true,
			AllowSystemCommands: false,
			RequireConfirmation: ConfirmationConfig{
				FileDeletion:   true,
				SystemCommands: true,
			},
		},
		Security: SecurityConfig{
			EnableRollback:        true,
			MaxRollbackOperations: 10,
		},
		Features: FeaturesConfig{
			MaxContextMessages: 10,
			MinAnswerLength:    2,
		},
		Logging: LoggingConfig{
			Level:         "info",
			LogOperations: true,
		},
	}
}
