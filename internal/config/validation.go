package config

import "fmt"

// knownBackendKinds are the backends the router can construct.
var knownBackendKinds = map[string]bool{
	"ollama": true,
	"gemini": true,
}

// Validate checks configuration invariants that cannot be expressed in the
// type system. Called after the dotfile is merged over defaults.
func (c *Config) Validate() error {
	if !knownBackendKinds[c.Backend.Kind] {
		return fmt.Errorf("backend.kind must be \"ollama\" or \"gemini\", got %q", c.Backend.Kind)
	}
	if c.Backend.Fallback != nil && !knownBackendKinds[c.Backend.Fallback.Kind] {
		return fmt.Errorf("backend.fallback.kind must be \"ollama\" or \"gemini\", got %q", c.Backend.Fallback.Kind)
	}
	if c.Backend.HardTimeoutSeconds <= 0 {
		return fmt.Errorf("backend.hard_timeout_seconds must be positive, got %d", c.Backend.HardTimeoutSeconds)
	}
	if c.Backend.StallTimeoutSeconds <= 0 {
		return fmt.Errorf("backend.stall_timeout_seconds must be positive, got %d", c.Backend.StallTimeoutSeconds)
	}
	if c.Backend.StallTimeoutSeconds > c.Backend.HardTimeoutSeconds {
		return fmt.Errorf("backend.stall_timeout_seconds (%d) must not exceed backend.hard_timeout_seconds (%d)",
			c.Backend.StallTimeoutSeconds, c.Backend.HardTimeoutSeconds)
	}
	if c.Security.MaxRollbackOperations < 1 {
		return fmt.Errorf("security.max_rollback_operations must be at least 1, got %d", c.Security.MaxRollbackOperations)
	}
	if c.Features.MaxContextMessages < 1 {
		return fmt.Errorf("features.max_context_messages must be at least 1, got %d", c.Features.MaxContextMessages)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	for i, route := range c.Routing.Routes {
		if len(route.Keywords) == 0 {
			return fmt.Errorf("routing.routes[%d] has no keywords", i)
		}
		if route.Model == "" {
			return fmt.Errorf("routing.routes[%d] has no model", i)
		}
	}
	return nil
}
