package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// DemoTenantFallback lets users without any tenant membership land on the
	// configured default tenant when no tenant cookie is present.
	DemoTenantFallback = "DEMO_TENANT_FALLBACK"
	// DisableLiveEvents turns off the /ws/events row change feed.
	DisableLiveEvents = "DISABLE_LIVE_EVENTS"
)

// Lookup reads a raw flag value
type Lookup func(key string) (string, bool)

// Set answers flag queries from a lookup source
type Set struct {
	lookup Lookup
}

// FromEnv reads flags from env as FLAG_<NAME>
func FromEnv() *Set {
	return &Set{lookup: os.LookupEnv}
}

// FromMap is used in tests; keys are full variable names (FLAG_<NAME>)
func FromMap(values map[string]string) *Set {
	return &Set{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

// Enabled returns true if the flag is set to true/1/yes/on (case-insensitive)
func (s *Set) Enabled(name string) bool {
	if s == nil || s.lookup == nil {
		return false
	}
	v, _ := s.lookup("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	return FromEnv().Enabled(name)
}
