package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Identity.Role != "executor" {
		t.Fatalf("unexpected identity role: %s", AppConfig.Identity.Role)
	}
	if AppConfig.Settlement.DefaultTimeoutBlocks != 144 {
		t.Fatalf("unexpected default timeout blocks: %d", AppConfig.Settlement.DefaultTimeoutBlocks)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Settlement.DefaultTimeoutBlocks != 288 {
		t.Fatalf("expected overridden timeout blocks 288, got %d", AppConfig.Settlement.DefaultTimeoutBlocks)
	}
	if AppConfig.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %s", AppConfig.Logging.Level)
	}
}

func TestLoadConfigIsolatedDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("identity:\n  role: operator\nsettlement:\n  max_amount_sats: 42\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "default.yaml"), data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Identity.Role != "operator" {
		t.Fatalf("expected identity role operator, got %s", AppConfig.Identity.Role)
	}
	if AppConfig.Settlement.MaxAmountSats != 42 {
		t.Fatalf("expected max amount sats 42, got %d", AppConfig.Settlement.MaxAmountSats)
	}
}
