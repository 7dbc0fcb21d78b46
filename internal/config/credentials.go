package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rohankatakam/strategos-engine/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager resolves the Strategos API token through a priority
// chain: environment variable -> OS keychain -> config file -> interactive
// prompt.
type CredentialManager struct {
	mode       DeploymentMode
	keyring    *KeyringManager
	configPath string
}

// Credentials is the on-disk fallback format when no keychain is available.
type Credentials struct {
	StrategosAPIToken string `yaml:"strategos_api_token"`
}

// NewCredentialManager creates a new credential manager.
func NewCredentialManager() *CredentialManager {
	mode := DetectMode()
	homeDir, _ := os.UserHomeDir()
	configPath := filepath.Join(homeDir, ".config", "strategos-engine", "credentials.yaml")

	return &CredentialManager{
		mode:       mode,
		keyring:    NewKeyringManager(),
		configPath: configPath,
	}
}

// GetAPIToken retrieves the Strategos API token using the priority chain.
func (cm *CredentialManager) GetAPIToken() (string, error) {
	if token := os.Getenv("STRATEGOS_API_TOKEN"); token != "" {
		return token, nil
	}

	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GetAPIToken(); err == nil && token != "" {
			return token, nil
		}
	}

	if creds, err := cm.loadConfigFile(); err == nil && creds.StrategosAPIToken != "" {
		return creds.StrategosAPIToken, nil
	}

	if cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Println("\nStrategos API token not found.")
		fmt.Println("Ask your Strategos administrator for one.")
		fmt.Println()
		return cm.promptForAPIToken()
	}

	return "", errors.ConfigErrorf(
		"STRATEGOS_API_TOKEN not found. Set it via:\n"+
			"  1. Environment variable: export STRATEGOS_API_TOKEN=...\n"+
			"  2. Run: engine configure (to set up keychain)\n"+
			"  3. Config file: %s", cm.configPath)
}

// SaveCredentials saves the token to the keychain (preferred) or the config
// file (fallback, restrictive permissions).
func (cm *CredentialManager) SaveCredentials(creds Credentials) error {
	if cm.keyring.IsAvailable() {
		if creds.StrategosAPIToken != "" {
			if err := cm.keyring.SaveAPIToken(creds.StrategosAPIToken); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
					"failed to save strategos api token to keychain")
			}
		}
		return nil
	}

	return cm.saveConfigFile(creds)
}

func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(cm.configPath, data, 0600)
}

// promptForAPIToken prompts the user for the Strategos API token.
func (cm *CredentialManager) promptForAPIToken() (string, error) {
	fmt.Print("Enter Strategos API token: ")
	token, err := cm.readSecurely()
	if err != nil {
		return "", err
	}

	if token == "" {
		return "", errors.ConfigError("strategos api token is required")
	}

	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SaveAPIToken(token); err == nil {
			fmt.Println("Saved to keychain")
		}
	} else {
		creds := Credentials{StrategosAPIToken: token}
		if err := cm.saveConfigFile(creds); err == nil {
			fmt.Printf("Saved to %s\n", cm.configPath)
		}
	}

	return token, nil
}

// readSecurely reads a token from stdin without echoing when attached to a
// terminal, falling back to a plain line read for piped input.
func (cm *CredentialManager) readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// GetMode returns the current deployment mode.
func (cm *CredentialManager) GetMode() DeploymentMode {
	return cm.mode
}

// GetConfigPath returns the path to the credentials fallback file.
func (cm *CredentialManager) GetConfigPath() string {
	return cm.configPath
}

// HasCredentials reports whether a Strategos API token is configured
// anywhere in the priority chain.
func (cm *CredentialManager) HasCredentials() bool {
	if os.Getenv("STRATEGOS_API_TOKEN") != "" {
		return true
	}

	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GetAPIToken(); err == nil && token != "" {
			return true
		}
	}

	if creds, err := cm.loadConfigFile(); err == nil && creds.StrategosAPIToken != "" {
		return true
	}

	return false
}
