package core

import "strings"

// Environment represents the deployment environment of the assistant.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// DefaultLogLevel is the log level used when LOG_LEVEL is not set. Debug
// output interleaves with the chat on a terminal, so it is opt-in everywhere.
func (e Environment) DefaultLogLevel() string {
	if e == Testing {
		return "warn"
	}
	return "info"
}

// StructuredLogs reports whether logs are emitted as JSON rather than through
// the console writer.
func (e Environment) StructuredLogs() bool {
	return e == Production || e == Staging
}

// ParseEnvironment maps ENVIRONMENT to a known environment; anything
// unrecognised is Development.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
