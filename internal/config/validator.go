package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/strategos-engine/internal/errors"
)

// ValidationContext specifies which configuration sections are required.
type ValidationContext string

const (
	// ValidationContextRun validates what a pipeline run needs: the
	// Strategos connection and pathway catalog.
	ValidationContextRun ValidationContext = "run"
	// ValidationContextMCP validates what the MCP server needs in
	// addition to a run: the projects root directory.
	ValidationContextMCP ValidationContext = "mcp"
	// ValidationContextAll validates every configuration section.
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result.
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result.
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors.
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message.
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context with
// auto-detected deployment mode.
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	mode := DetectMode()
	return c.ValidateWithMode(ctx, mode)
}

// ValidateWithMode validates configuration for the given context and
// deployment mode.
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextRun:
		c.validateStrategos(result, mode)
		c.validatePathway(result)
		c.validateConcurrency(result)
	case ValidationContextMCP:
		c.validateStrategos(result, mode)
		c.validatePathway(result)
		c.validateConcurrency(result)
		c.validateProjects(result)
	case ValidationContextAll:
		c.validateStrategos(result, mode)
		c.validatePathway(result)
		c.validateConcurrency(result)
		c.validateProjects(result)
		c.validateEventLog(result)
		c.validateNeo4jMirror(result, mode)
	}

	return result
}

// ValidateOrFatal validates configuration and panics if invalid
// (auto-detects mode).
func (c *Config) ValidateOrFatal(ctx ValidationContext) {
	mode := DetectMode()
	c.ValidateOrFatalWithMode(ctx, mode)
}

// ValidateOrFatalWithMode validates configuration with an explicit mode
// and panics if invalid.
func (c *Config) ValidateOrFatalWithMode(ctx ValidationContext, mode DeploymentMode) {
	result := c.ValidateWithMode(ctx, mode)
	if result.HasErrors() {
		fmt.Println(result.Error())
		fmt.Printf("\nDeployment mode: %s (%s)\n", mode, mode.Description())
		panic(errors.ConfigError(result.Error()))
	}

	if len(result.Warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range result.Warnings {
			fmt.Printf("  ! %s\n", warn)
		}
		fmt.Printf("\nDeployment mode: %s\n", mode)
	}
}

func (c *Config) validateStrategos(result *ValidationResult, mode DeploymentMode) {
	if c.Strategos.BaseURL == "" {
		result.AddError("strategos.base_url is required but not set")
	} else if _, err := url.Parse(c.Strategos.BaseURL); err != nil {
		result.AddError("strategos.base_url is invalid: %v", err)
	} else if strings.Contains(c.Strategos.BaseURL, "localhost") || strings.Contains(c.Strategos.BaseURL, "127.0.0.1") {
		if mode.RequiresSecureCredentials() {
			result.AddError("strategos.base_url points at localhost. In %s mode (%s), you must provide a remote Strategos endpoint.", mode, mode.Description())
		}
	}

	if c.Strategos.APIToken == "" {
		if mode.RequiresSecureCredentials() {
			result.AddError("strategos API token is required in %s mode. Set it via %s.", mode, mode.ConfigSource())
		} else {
			result.AddWarning("strategos API token is not set. Spawn requests will be sent unauthenticated.")
		}
	}

	if c.Strategos.RequestsPerSecond <= 0 {
		result.AddWarning("strategos.requests_per_second is not set, will default to 2")
	}
}

func (c *Config) validatePathway(result *ValidationResult) {
	if c.Pathway.Directory == "" {
		result.AddError("pathway.directory is required but not set")
	}
}

func (c *Config) validateConcurrency(result *ValidationResult) {
	if c.Concurrency.InvestigationBatchSize <= 0 {
		result.AddWarning("concurrency.investigation_batch_size is not set, will default to 5")
	}
	if c.Concurrency.ClassificationWorkersMin <= 0 || c.Concurrency.ClassificationWorkersMax <= 0 {
		result.AddWarning("concurrency classification worker bounds are not set, will default to 3-5")
	}
	if c.Concurrency.ClassificationWorkersMin > c.Concurrency.ClassificationWorkersMax {
		result.AddError("concurrency.classification_workers_min (%d) exceeds classification_workers_max (%d)", c.Concurrency.ClassificationWorkersMin, c.Concurrency.ClassificationWorkersMax)
	}
}

func (c *Config) validateProjects(result *ValidationResult) {
	if c.Projects.RootDir == "" {
		result.AddError("projects.root_dir is required but not set")
	}
}

func (c *Config) validateEventLog(result *ValidationResult) {
	if c.EventLog.Enabled && c.EventLog.Path == "" {
		result.AddError("event_log.path is required when event_log.enabled is true")
	}
}

func (c *Config) validateNeo4jMirror(result *ValidationResult, mode DeploymentMode) {
	if !c.Neo4jMirror.Enabled {
		return
	}
	if c.Neo4jMirror.URI == "" {
		result.AddError("neo4j_mirror.uri is required when neo4j_mirror.enabled is true")
	} else if _, err := url.Parse(c.Neo4jMirror.URI); err != nil {
		result.AddError("neo4j_mirror.uri is invalid: %v", err)
	}
	if c.Neo4jMirror.Password == "" && mode.RequiresSecureCredentials() {
		result.AddError("neo4j_mirror.password is required in %s mode when the mirror is enabled", mode)
	}
}

// RequireStrategos checks the Strategos connection is configured and
// returns an error if not.
func (c *Config) RequireStrategos() error {
	result := &ValidationResult{Valid: true}
	mode := DetectMode()
	c.validateStrategos(result, mode)

	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}
