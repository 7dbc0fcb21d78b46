package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_RunContext_MissingBaseURLIsError(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = ""

	result := cfg.ValidateWithMode(ValidationContextRun, ModeDevelopment)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "strategos.base_url")
}

func TestValidate_RunContext_LocalhostRejectedInPackagedMode(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = "http://localhost:8088"
	cfg.Strategos.APIToken = "token"

	result := cfg.ValidateWithMode(ValidationContextRun, ModePackaged)
	assert.False(t, result.Valid)
}

func TestValidate_RunContext_LocalhostAllowedInDevelopmentMode(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = "http://localhost:8088"
	cfg.Strategos.APIToken = "token"

	result := cfg.ValidateWithMode(ValidationContextRun, ModeDevelopment)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidate_RunContext_MissingTokenWarnsInDevelopment(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = "https://strategos.example.com"
	cfg.Strategos.APIToken = ""

	result := cfg.ValidateWithMode(ValidationContextRun, ModeDevelopment)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidate_RunContext_MissingTokenErrorsInPackaged(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = "https://strategos.example.com"
	cfg.Strategos.APIToken = ""

	result := cfg.ValidateWithMode(ValidationContextRun, ModePackaged)
	assert.False(t, result.Valid)
}

func TestValidate_RunContext_MissingPathwayDirectoryIsError(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.Pathway.Directory = ""

	result := cfg.ValidateWithMode(ValidationContextRun, ModeDevelopment)
	assert.False(t, result.Valid)
}

func TestValidate_RunContext_InvertedWorkerBoundsIsError(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.Concurrency.ClassificationWorkersMin = 6
	cfg.Concurrency.ClassificationWorkersMax = 3

	result := cfg.ValidateWithMode(ValidationContextRun, ModeDevelopment)
	assert.False(t, result.Valid)
}

func TestValidate_MCPContext_RequiresProjectsRootDir(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.Projects.RootDir = ""

	result := cfg.ValidateWithMode(ValidationContextMCP, ModeDevelopment)
	assert.False(t, result.Valid)
}

func TestValidate_AllContext_EventLogEnabledWithoutPathIsError(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.EventLog.Enabled = true
	cfg.EventLog.Path = ""

	result := cfg.ValidateWithMode(ValidationContextAll, ModeDevelopment)
	assert.False(t, result.Valid)
}

func TestValidate_AllContext_Neo4jMirrorDisabledSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.Neo4jMirror.Enabled = false
	cfg.Neo4jMirror.URI = ""

	result := cfg.ValidateWithMode(ValidationContextAll, ModeDevelopment)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidate_AllContext_Neo4jMirrorEnabledRequiresURI(t *testing.T) {
	cfg := Default()
	cfg.Strategos.APIToken = "token"
	cfg.Neo4jMirror.Enabled = true
	cfg.Neo4jMirror.URI = ""

	result := cfg.ValidateWithMode(ValidationContextAll, ModeDevelopment)
	assert.False(t, result.Valid)
}

func TestValidationResult_ErrorFormatsErrorsAndWarnings(t *testing.T) {
	result := &ValidationResult{Valid: true}
	result.AddError("bad thing %d", 1)
	result.AddWarning("minor thing")

	assert.True(t, result.HasErrors())
	msg := result.Error()
	assert.Contains(t, msg, "bad thing 1")
	assert.Contains(t, msg, "minor thing")
}

func TestRequireStrategos_ReturnsErrorWhenMissing(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = ""

	err := cfg.RequireStrategos()
	assert.Error(t, err)
}
