package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ValidationError represents a single invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for required fields and valid values.
// All problems are reported together.
func Validate(c *Config) error {
	var errors []string

	for _, err := range validateApp(c.App) {
		errors = append(errors, err.Error())
	}
	for _, err := range validateUpdate(c.Update) {
		errors = append(errors, err.Error())
	}
	if err := validateLog(c.Log); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateApp(a AppConfig) []error {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, ValidationError{Field: KeyAppName, Message: "name is required"})
	}
	if strings.TrimSpace(a.Executable) == "" {
		errs = append(errs, ValidationError{Field: KeyAppExecutable, Message: "executable is required"})
	}
	if strings.TrimSpace(a.InstallDir) == "" {
		errs = append(errs, ValidationError{Field: KeyAppInstallDir, Message: "install_dir is required"})
	}
	return errs
}

func validateUpdate(u UpdateConfig) []error {
	var errs []error

	if err := validateBaseURL(u.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(u.ManifestPath) == "" {
		errs = append(errs, ValidationError{Field: KeyManifestPath, Message: "manifest_path is required"})
	}
	if u.ChunkSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   KeyChunkSize,
			Message: fmt.Sprintf("must be positive, got %d", u.ChunkSize),
		})
	}
	if u.BackupRetain < 1 {
		errs = append(errs, ValidationError{
			Field:   KeyBackupRetain,
			Message: fmt.Sprintf("must keep at least one backup, got %d", u.BackupRetain),
		})
	}

	positive := []struct {
		key string
		val time.Duration
	}{
		{KeyTimeout, u.Timeout},
		{KeyCheckInterval, u.CheckInterval},
		{KeyDecisionTimeout, u.DecisionTimeout},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, ValidationError{Field: p.key, Message: fmt.Sprintf("must be positive, got %s", p.val)})
		}
	}

	nonNegative := []struct {
		key string
		val time.Duration
	}{
		{KeyInitialDelay, u.InitialDelay},
		{KeyHandoffDelay, u.HandoffDelay},
		{KeyHelperWait, u.HelperWait},
	}
	for _, p := range nonNegative {
		if p.val < 0 {
			errs = append(errs, ValidationError{Field: p.key, Message: fmt.Sprintf("must not be negative, got %s", p.val)})
		}
	}

	return errs
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ValidationError{Field: KeyBaseURL, Message: "base_url is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: KeyBaseURL, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: KeyBaseURL, Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return ValidationError{Field: KeyBaseURL, Message: "host is required"}
	}
	return nil
}

func validateLog(l LogConfig) error {
	if _, err := log.ParseLevel(l.Level); err != nil {
		return ValidationError{Field: KeyLogLevel, Message: err.Error()}
	}
	return nil
}
