package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("output does not mention target: %q", output)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[download]") {
		t.Fatal("sample missing [download] section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# mine"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}

	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) == "# mine" {
		t.Fatal("overwrite did not replace the file")
	}
}

func TestConfigShowPrintsResolvedValues(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	body := "[paths]\n" +
		"export_html = \"" + filepath.Join(dir, "memories_history.html") + "\"\n" +
		"output_dir = \"" + filepath.Join(dir, "memories") + "\"\n" +
		"ledger_path = \"" + filepath.Join(dir, "download_progress.json") + "\"\n" +
		"pairs_cache_path = \"" + filepath.Join(dir, "overlay_pairs.json") + "\"\n" +
		"log_dir = \"" + filepath.Join(dir, "logs") + "\"\n" +
		"[download]\n" +
		"max_retries = 7\n"
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := runCommand(t, "--config", target, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(output, "max_retries = 7") {
		t.Fatalf("output missing overridden value: %q", output)
	}
	if !strings.Contains(output, "[composite]") {
		t.Fatalf("output missing defaulted section: %q", output)
	}
}

func TestShouldSkipConfig(t *testing.T) {
	root := newRootCommand()
	for _, cmd := range root.Commands() {
		if cmd.Name() != "config" {
			continue
		}
		for _, sub := range cmd.Commands() {
			if sub.Name() == "init" && !shouldSkipConfig(sub) {
				t.Fatal("config init must skip config loading")
			}
		}
	}
}
