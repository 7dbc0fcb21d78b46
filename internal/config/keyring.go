package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain.
	KeyringService = "StrategosEngine"

	// KeyringAPITokenItem is the key for the Strategos API token.
	KeyringAPITokenItem = "strategos-api-token"
)

// KeyringManager handles secure credential storage in the OS keychain.
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager.
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SaveAPIToken stores the Strategos API token securely in the OS keychain:
// - macOS: Keychain Access.app → "StrategosEngine" → "strategos-api-token"
// - Windows: Credential Manager → "StrategosEngine"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) SaveAPIToken(token string) error {
	if token == "" {
		return fmt.Errorf("api token cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringAPITokenItem, token); err != nil {
		km.logger.Error("failed to save api token to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("api token saved to keychain", "service", KeyringService)
	return nil
}

// GetAPIToken retrieves the Strategos API token from the OS keychain. A
// missing item is not an error — callers fall through to the next
// credential source in the priority chain.
func (km *KeyringManager) GetAPIToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringAPITokenItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get api token from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("api token retrieved from keychain")
	return token, nil
}

// DeleteAPIToken removes the Strategos API token from the OS keychain.
func (km *KeyringManager) DeleteAPIToken() error {
	err := keyring.Delete(KeyringService, KeyringAPITokenItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete api token from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("api token deleted from keychain")
	return nil
}

// IsAvailable reports whether the OS keychain backend is reachable at all.
// A "not found" response still means the backend answered, so it counts as
// available; any other error (e.g. no Secret Service daemon on a headless
// Linux box) means the keychain can't be used.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// TokenSourceInfo describes where the Strategos API token was resolved from.
type TokenSourceInfo struct {
	Source      string // "keychain", "config", "env", "env_file", "none"
	Secure      bool
	Recommended string
}

// GetAPITokenSource determines where the API token is coming from, for
// `engine configure --status`-style diagnostics.
func (km *KeyringManager) GetAPITokenSource(cfg *Config) TokenSourceInfo {
	if os.Getenv("STRATEGOS_API_TOKEN") != "" {
		return TokenSourceInfo{
			Source:      "env",
			Secure:      true,
			Recommended: "Using environment variable (good for CI/CD)",
		}
	}

	if keychainToken, _ := km.GetAPIToken(); keychainToken != "" {
		return TokenSourceInfo{
			Source:      "keychain",
			Secure:      true,
			Recommended: "Stored securely in OS keychain",
		}
	}

	if cfg.Strategos.APIToken != "" {
		return TokenSourceInfo{
			Source:      "config",
			Secure:      false,
			Recommended: "Plaintext storage detected. The OS keychain is the secure alternative.",
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		return TokenSourceInfo{
			Source:      "env_file",
			Secure:      false,
			Recommended: "Using .env file (OK for CI, consider keychain for local dev)",
		}
	}

	return TokenSourceInfo{
		Source:      "none",
		Secure:      false,
		Recommended: "No API token configured. Run: engine configure",
	}
}

// MaskAPIToken masks a token for display: shows first 7 and last 4 chars.
func MaskAPIToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", token[:7], token[len(token)-4:])
}
