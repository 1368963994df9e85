package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ayalabs/aya/internal/world"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context) (*world.Snapshot, error) {
	temp := 6.0
	return &world.Snapshot{
		Status:  "ok",
		Weather: &world.Weather{TempC: &temp},
	}, nil
}

func setupTestHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("AYA_TELEGRAM_TOKEN", "")
	t.Setenv("AYA_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	return tmp
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String(), err
}

func TestInit(t *testing.T) {
	if rootCmd == nil {
		t.Error("rootCmd should not be nil")
	}
	if botCmd == nil {
		t.Error("botCmd should not be nil")
	}
	if chatCmd == nil {
		t.Error("chatCmd should not be nil")
	}
	if onboardCmd == nil {
		t.Error("onboardCmd should not be nil")
	}
	if statusCmd == nil {
		t.Error("statusCmd should not be nil")
	}
}

func TestRunOnboard(t *testing.T) {
	tmp := setupTestHome(t)

	output, err := captureStdout(t, func() error {
		return runOnboard(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runOnboard error: %v", err)
	}

	cfgPath := filepath.Join(tmp, ".aya", "config.json")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}
	personaDir := filepath.Join(tmp, ".aya", "persona")
	if _, err := os.Stat(filepath.Join(personaDir, "policies")); os.IsNotExist(err) {
		t.Error("policy defaults were not created")
	}

	if !strings.Contains(output, "Created config") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestRunOnboardAlreadyExists(t *testing.T) {
	tmp := setupTestHome(t)

	cfgDir := filepath.Join(tmp, ".aya")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{}"), 0644)

	output, err := captureStdout(t, func() error {
		return runOnboard(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runOnboard error: %v", err)
	}
	if !strings.Contains(output, "Config already exists") {
		t.Errorf("expected 'Config already exists', got: %s", output)
	}
}

func TestRunStatus(t *testing.T) {
	setupTestHome(t)

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}

	if !strings.Contains(output, "Config:") {
		t.Errorf("missing Config in output: %s", output)
	}
	if !strings.Contains(output, "API Key: not set") {
		t.Errorf("missing API Key info in output: %s", output)
	}
	if !strings.Contains(output, "Telegram: enabled=") {
		t.Errorf("missing Telegram status in output: %s", output)
	}
	if !strings.Contains(output, "Database: not found") {
		t.Errorf("missing database status in output: %s", output)
	}
}

func TestRunStatusWithAPIKey(t *testing.T) {
	setupTestHome(t)
	t.Setenv("AYA_API_KEY", "sk-test-key-12345678")

	output, err := captureStdout(t, func() error {
		return runStatus(&cobra.Command{}, []string{})
	})
	if err != nil {
		t.Errorf("runStatus error: %v", err)
	}
	if !strings.Contains(output, "sk-t...") {
		t.Errorf("API key should be masked in output: %s", output)
	}
}

func TestRunBotWithoutTelegram(t *testing.T) {
	setupTestHome(t)

	err := runBot(&cobra.Command{}, []string{})
	if err == nil {
		t.Error("expected error when telegram is not configured")
	}
	if !strings.Contains(err.Error(), "telegram is not configured") {
		t.Errorf("error should mention telegram: %v", err)
	}
}

func TestRunChatWithOptions(t *testing.T) {
	setupTestHome(t)

	stdin := strings.NewReader("привет\nexit\n")
	var stdout, stderr bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Fetcher: stubFetcher{},
		Stdin:   stdin,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions error: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "aya chat") {
		t.Errorf("expected chat welcome message, got: %s", out)
	}
	// demo mode still produces a reply
	if !strings.Contains(out, "Привет") && !strings.Contains(out, "демо") {
		t.Errorf("expected a reply in output, got: %s", out)
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunChatHandlesSlashCommands(t *testing.T) {
	setupTestHome(t)

	stdin := strings.NewReader("/help\nquit\n")
	var stdout bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Fetcher: stubFetcher{},
		Stdin:   stdin,
		Stdout:  &stdout,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions error: %v", err)
	}
	if !strings.Contains(stdout.String(), "/me") {
		t.Errorf("expected the command list, got: %s", stdout.String())
	}
}

func TestRunChatSkipsEmptyInput(t *testing.T) {
	setupTestHome(t)

	stdin := strings.NewReader("\n\nexit\n")
	var stdout bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Fetcher: stubFetcher{},
		Stdin:   stdin,
		Stdout:  &stdout,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions error: %v", err)
	}
}
