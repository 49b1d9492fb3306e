// conf/validate.go

package conf

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateChainSettings(&settings.Chain); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if settings.Listen == "" {
		return fmt.Errorf("webserver.listen must not be empty")
	}
	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return fmt.Errorf("at least one database backend must be enabled")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty when SQLite is enabled")
	}
	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			return fmt.Errorf("output.mysql requires host and database")
		}
	}
	return nil
}

func validateSecuritySettings(settings *SecuritySettings) error {
	// Generate a random secret on first start so tokens work out of the box.
	// Tokens are invalidated on restart until a secret is pinned in config.
	if settings.JWTSecret == "" {
		settings.JWTSecret = GenerateRandomSecret()
	}
	if settings.TokenTTLHours <= 0 {
		return fmt.Errorf("security.tokenttlhours must be positive")
	}
	return nil
}

func validateChainSettings(settings *ChainSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.RPCURL == "" {
		return fmt.Errorf("chain.rpcurl must not be empty when chain is enabled")
	}
	if settings.ProgramID == "" {
		return fmt.Errorf("chain.programid must not be empty when chain is enabled")
	}
	if settings.AdminKey == "" {
		return fmt.Errorf("chain.adminkey must not be empty when chain is enabled")
	}
	return nil
}

// GenerateRandomSecret returns a URL-safe random secret suitable for token signing.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable for secret generation
		panic(fmt.Sprintf("failed to generate random secret: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
