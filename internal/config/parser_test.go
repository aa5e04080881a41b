package config

import (
	"os"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		expected Format
	}{
		{"yaml extension", "upkeep.yaml", "", FormatYAML},
		{"yml extension", "upkeep.yml", "", FormatYAML},
		{"toml extension", "upkeep.toml", "", FormatTOML},
		{"json extension", "upkeep.json", "", FormatJSON},
		{"json content", "upkeep.conf", `{"update": {}}`, FormatJSON},
		{"yaml content", "upkeep.conf", "update:\n  base_url: https://example.com", FormatYAML},
		{"toml content", "upkeep.conf", "[update]\nbase_url = \"https://example.com\"", FormatTOML},
		{"comment then toml", "upkeep", "# settings\nchunk_size = 4096", FormatTOML},
		{"empty content", "upkeep", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFormat(tt.path, []byte(tt.content))
			if got != tt.expected {
				t.Errorf("detectFormat() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "test_value")
	os.Setenv("EMPTY_VAR", "")
	defer os.Unsetenv("TEST_VAR")
	defer os.Unsetenv("EMPTY_VAR")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "${TEST_VAR}", "test_value"},
		{"var with default", "${MISSING_VAR:-default_value}", "default_value"},
		{"existing var ignores default", "${TEST_VAR:-default_value}", "test_value"},
		{"empty var uses default", "${EMPTY_VAR:-default_value}", "default_value"},
		{"no var", "plain text", "plain text"},
		{"mixed content", "prefix ${TEST_VAR} suffix", "prefix test_value suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(expandEnvVars([]byte(tt.input)))
			if got != tt.expected {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	content := []byte(`
app:
  name: notes
update:
  base_url: https://updates.example.com
  chunk_size: 4096
`)
	raw, err := parse(content, FormatYAML)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	update, ok := raw["update"].(map[string]interface{})
	if !ok {
		t.Fatalf("update section has type %T", raw["update"])
	}
	if update["base_url"] != "https://updates.example.com" {
		t.Errorf("base_url = %v", update["base_url"])
	}
	if update["chunk_size"] != 4096 {
		t.Errorf("chunk_size = %v (%T)", update["chunk_size"], update["chunk_size"])
	}
}

func TestParseTOML(t *testing.T) {
	content := []byte(`
[app]
name = "notes"

[update]
check_interval = "30m"
`)
	raw, err := parse(content, FormatTOML)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	update, ok := raw["update"].(map[string]interface{})
	if !ok {
		t.Fatalf("update section has type %T", raw["update"])
	}
	if update["check_interval"] != "30m" {
		t.Errorf("check_interval = %v", update["check_interval"])
	}
}

func TestParseJSON(t *testing.T) {
	raw, err := parse([]byte(`{"log": {"level": "debug"}}`), FormatJSON)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	logSection, ok := raw["log"].(map[string]interface{})
	if !ok {
		t.Fatalf("log section has type %T", raw["log"])
	}
	if logSection["level"] != "debug" {
		t.Errorf("level = %v", logSection["level"])
	}
}

func TestParseEnvVarExpansion(t *testing.T) {
	t.Setenv("UPDATE_HOST", "mirror.example.com")

	raw, err := parse([]byte("update:\n  base_url: https://${UPDATE_HOST}/notes\n"), FormatYAML)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	update := raw["update"].(map[string]interface{})
	if update["base_url"] != "https://mirror.example.com/notes" {
		t.Errorf("base_url = %v", update["base_url"])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		format  Format
	}{
		{"bad yaml", "update: [unclosed", FormatYAML},
		{"bad toml", "[update\nx = ", FormatTOML},
		{"bad json", "{", FormatJSON},
		{"unknown format", "anything", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse([]byte(tt.content), tt.format); err == nil {
				t.Error("parse() expected error")
			}
		})
	}
}
