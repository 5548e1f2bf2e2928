package main

import (
	"os"
	"testing"

	"runvet/cmd"
)

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

func TestVersionDefault(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestVersionVariable(t *testing.T) {
	tests := []struct {
		name     string
		setValue string
	}{
		{name: "custom version", setValue: "v1.0.0"},
		{name: "semantic version", setValue: "2.3.4-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalVersion := version
			defer func() { version = originalVersion }()

			version = tt.setValue
			if version != tt.setValue {
				t.Errorf("Expected version %s, got %s", tt.setValue, version)
			}
		})
	}
}

func TestSetVersionAcceptsAnyFormat(t *testing.T) {
	originalVersion := version
	defer func() { version = originalVersion }()

	for _, v := range []string{"dev", "1.0.0", "v2.0.0-rc1"} {
		version = v
		cmd.SetVersion(version)
	}
}
