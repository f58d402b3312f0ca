package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds on/off toggles for optional behaviour, overridable per
// process through FEATURE_<NAME> environment variables.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureAnnounceLevelUp  = "announce.level_up"    // Post level-ups to the log channel
	FeatureCommandRank      = "commands.rank"        // /rank
	FeatureCommandTop       = "commands.top"         // /top
	FeatureCommandsRegister = "commands.register"    // Register slash commands at startup
	FeatureQueryAPI         = "api.query"            // JSON rank/leaderboard endpoints
	FeatureShutdownFlush    = "store.shutdown_flush" // Flush records once more on shutdown
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment(os.Getenv)
	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureAnnounceLevelUp, Description: "Announce level-ups in the log channel", Enabled: true},
		{Name: FeatureCommandRank, Description: "Serve the /rank slash command", Enabled: true},
		{Name: FeatureCommandTop, Description: "Serve the /top slash command", Enabled: true},
		{Name: FeatureCommandsRegister, Description: "Overwrite slash command definitions at startup", Enabled: true},
		{Name: FeatureQueryAPI, Description: "Expose the JSON query API", Enabled: true},
		{Name: FeatureShutdownFlush, Description: "Flush records to the durable store on shutdown", Enabled: true},
	} {
		f := f
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies overrides.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_ANNOUNCE_LEVEL_UP=false
func (ff *FeatureFlags) loadFromEnvironment(getenv func(string) string) {
	for name, feature := range ff.features {
		if val := getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "announce.level_up" -> "FEATURE_ANNOUNCE_LEVEL_UP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[featureName]
	return ok && f.Enabled
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.set(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.set(featureName, false)
}

func (ff *FeatureFlags) set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "unknown feature"}
	}
	f.Enabled = enabled
	return nil
}

// Enabled returns the names of enabled features, sorted.
func (ff *FeatureFlags) Enabled() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	names := make([]string, 0, len(ff.features))
	for name, f := range ff.features {
		if f.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FeatureFlagError reports an operation on an unknown feature.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature " + e.Feature + ": " + e.Message
}
