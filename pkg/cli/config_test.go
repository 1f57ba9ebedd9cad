package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeConfig_CLITakesPrecedence(t *testing.T) {
	config := &ClientConfig{
		Host:     "filehost",
		Port:     5433,
		Username: "fileuser",
		Password: "filepass",
		Database: "filedb",
	}

	merged := MergeConfig(config, "clihost", 6000, "cliuser", "", "")

	if merged.Host != "clihost" {
		t.Errorf("Expected CLI host to win, got %s", merged.Host)
	}
	if merged.Port != 6000 {
		t.Errorf("Expected CLI port to win, got %d", merged.Port)
	}
	if merged.Username != "cliuser" {
		t.Errorf("Expected CLI user to win, got %s", merged.Username)
	}
	if merged.Password != "filepass" {
		t.Errorf("Expected file password to survive, got %s", merged.Password)
	}
	if merged.Database != "filedb" {
		t.Errorf("Expected file database to survive, got %s", merged.Database)
	}
}

func TestMergeConfig_EmptyCLIKeepsFileValues(t *testing.T) {
	config := &ClientConfig{Host: "filehost", Port: 5433}
	merged := MergeConfig(config, "", 0, "", "", "")

	if merged.Host != "filehost" || merged.Port != 5433 {
		t.Errorf("Expected file values to survive empty CLI args, got %+v", merged)
	}
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pgclirc")
	content := `[connection]
host = db.example.com
port = 6432
username = alice
database = app
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config := &ClientConfig{}
	if err := readConfigFile(path, config); err != nil {
		t.Fatalf("readConfigFile failed: %v", err)
	}

	if config.Host != "db.example.com" {
		t.Errorf("Expected host db.example.com, got %s", config.Host)
	}
	if config.Port != 6432 {
		t.Errorf("Expected port 6432, got %d", config.Port)
	}
	if config.Username != "alice" {
		t.Errorf("Expected username alice, got %s", config.Username)
	}
	if config.Database != "app" {
		t.Errorf("Expected database app, got %s", config.Database)
	}
}

func TestReadConfigFile_Missing(t *testing.T) {
	config := &ClientConfig{}
	if err := readConfigFile(filepath.Join(t.TempDir(), "absent"), config); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
