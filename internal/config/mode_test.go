package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMode_ExplicitOverrideWins(t *testing.T) {
	os.Setenv("ENGINE_MODE", "ci")
	defer os.Unsetenv("ENGINE_MODE")

	assert.Equal(t, ModeCI, DetectMode())
}

func TestDetectMode_UnknownOverrideFallsThrough(t *testing.T) {
	os.Setenv("ENGINE_MODE", "bogus")
	defer os.Unsetenv("ENGINE_MODE")

	// An unrecognized override is not "ci", "packaged", or "development" by
	// explicit match, so detection falls through to the CI-env heuristics.
	mode := DetectMode()
	assert.NotEqual(t, DeploymentMode("bogus"), mode)
}

func TestDeploymentMode_RequiresSecureCredentials(t *testing.T) {
	assert.False(t, ModeDevelopment.RequiresSecureCredentials())
	assert.True(t, ModePackaged.RequiresSecureCredentials())
	assert.True(t, ModeCI.RequiresSecureCredentials())
}

func TestDeploymentMode_AllowsInteractivePrompts(t *testing.T) {
	assert.True(t, ModePackaged.AllowsInteractivePrompts())
	assert.False(t, ModeDevelopment.AllowsInteractivePrompts())
	assert.False(t, ModeCI.AllowsInteractivePrompts())
}

func TestDeploymentMode_String(t *testing.T) {
	assert.Equal(t, "development", ModeDevelopment.String())
}

func TestDeploymentMode_DescriptionIsNeverEmpty(t *testing.T) {
	for _, m := range []DeploymentMode{ModeDevelopment, ModePackaged, ModeCI, DeploymentMode("bogus")} {
		assert.NotEmpty(t, m.Description())
	}
}
