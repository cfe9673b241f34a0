package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestCLI() *CLI {
	return New(io.Discard, log.InfoLevel)
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newTestCLI().RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	sort.Strings(names)

	want := []string{"cache", "completion", "compose", "publish", "serve"}
	for _, w := range want {
		i := sort.SearchStrings(names, w)
		if i == len(names) || names[i] != w {
			t.Errorf("missing subcommand %q (have %v)", w, names)
		}
	}
}

func TestRootCommandLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[pipeline]
width = 320

[cache]
dir = "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestCLI()
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if c.config.Pipeline.Width != 320 {
		t.Errorf("config width = %d, want 320", c.config.Pipeline.Width)
	}
	if !strings.Contains(out.String(), "bash completion") {
		t.Errorf("completion output missing bash script header")
	}
}

func TestRootCommandMissingExplicitConfig(t *testing.T) {
	root := newTestCLI().RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.toml"), "completion", "bash"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	root := newTestCLI().RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unsupported shell")
	}
}

func TestRootCommandLoadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("BING_KEY=from-dotenv\nPOISSONFIELDS_WEBHOOK_TOKEN=tok\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// t.Setenv restores the original state after godotenv exports the file.
	for _, k := range []string{envBingKey, envWebhookToken, envRedisURL} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c := newTestCLI()
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--env-file", envPath, "--config", cfgPath, "completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if c.config.Provider.BingKey != "from-dotenv" {
		t.Errorf("bing key = %q, want from-dotenv", c.config.Provider.BingKey)
	}
	if c.config.Publish.WebhookToken != "tok" {
		t.Errorf("webhook token = %q, want tok", c.config.Publish.WebhookToken)
	}
}

func TestLoadEnvFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")
	if err := loadEnvFile(missing, false); err != nil {
		t.Errorf("missing default env file: %v", err)
	}
	if err := loadEnvFile(missing, true); err == nil {
		t.Error("expected error for missing --env-file")
	}
	if err := loadEnvFile("", true); err != nil {
		t.Errorf("empty path: %v", err)
	}

	t.Setenv(envBingKey, "from-process")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BING_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnvFile(path, true); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(envBingKey); got != "from-process" {
		t.Errorf("BING_KEY = %q, process environment should win", got)
	}
}
