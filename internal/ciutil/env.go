package ciutil

import (
	"log/slog"
	"os"
	"sort"

	"github.com/phrazzld/connkeeper/internal/redact"
)

// Common environment variable names used across the codebase.
// These constants ensure consistent access and prevent typos.
const (
	// CI environment detection variables
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvBuildkite     = "BUILDKITE"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// Database connection environment variables
	EnvTestDatabaseURL = "CONNKEEPER_TEST_DATABASE_URL" // Preferred standardized name
	EnvDatabaseURL     = "DATABASE_URL"
)

// metadataVars maps CI environment variables to the attribute names they are
// logged under.
var metadataVars = map[string]string{
	"GITHUB_RUN_ID":      "ci_run_id",
	"GITHUB_WORKFLOW":    "ci_workflow",
	"GITHUB_JOB":         "ci_job",
	"GITHUB_SHA":         "ci_commit",
	"CI_PIPELINE_ID":     "ci_pipeline_id",
	"CI_JOB_NAME":        "ci_job",
	"CI_COMMIT_SHA":      "ci_commit",
	"BUILDKITE_BUILD_ID": "ci_build_id",
}

// IsCI returns true if the current environment is a CI environment.
// It checks for common CI environment variables across different CI providers.
func IsCI() bool {
	return os.Getenv(EnvCI) != "" ||
		os.Getenv(EnvGitHubActions) != "" ||
		os.Getenv(EnvGitLabCI) != "" ||
		os.Getenv(EnvBuildkite) != "" ||
		os.Getenv(EnvJenkinsURL) != "" ||
		os.Getenv(EnvCircleCI) != ""
}

// Metadata returns the CI run attributes present in the environment, sorted
// by attribute name.
func Metadata() []slog.Attr {
	var attrs []slog.Attr
	for env, key := range metadataVars {
		if v := os.Getenv(env); v != "" {
			attrs = append(attrs, slog.String(key, v))
		}
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return attrs
}

// GetEnvWithFallbacks returns the value of the first non-empty environment variable
// from the provided list. If no environment variables are set, it returns the defaultValue.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			// Log a deprecation warning if a non-primary environment variable is used
			if i > 0 && logger != nil {
				logger.Warn("Using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", redact.String(val),
				)
			}
			return val
		}
	}
	return defaultValue
}
