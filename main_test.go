package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/datacache/internal/config"
	"github.com/dgnsrekt/datacache/pkg/datacache"
	"github.com/spf13/viper"
)

// run executes the root command against a temporary local store.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	viper.Set(config.KeyStorageType, "local")
	viper.Set(config.KeyStorageDir, dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_SetGetDelete(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, dir, "set", "greeting", "hello"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	out, err := run(t, dir, "get", "greeting")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("get printed %q, want hello", out)
	}

	out, _ = run(t, dir, "has", "greeting")
	if strings.TrimSpace(out) != "true" {
		t.Errorf("has printed %q, want true", out)
	}

	if _, err := run(t, dir, "delete", "greeting"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := run(t, dir, "get", "greeting"); !errors.Is(err, errNotCached) {
		t.Errorf("get after delete: err = %v, want errNotCached", err)
	}
}

func TestCLI_KeysMatch(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"user:alice", "user:bob", "session:xyz"} {
		if _, err := run(t, dir, "set", k, "v"); err != nil {
			t.Fatalf("set %s failed: %v", k, err)
		}
	}

	out, err := run(t, dir, "keys", "--match", "usr")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	keysMatch = ""

	lines := strings.Fields(out)
	if len(lines) != 2 {
		t.Fatalf("keys --match printed %q, want the two user keys", out)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "user:") {
			t.Errorf("unexpected match %q", l)
		}
	}
}

func TestCLI_Exec(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "exec", "greeting", "--", "echo", "first")
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if out != "first\n" {
		t.Errorf("exec printed %q", out)
	}

	// The cached output is served without running the command
	out, err = run(t, dir, "exec", "greeting", "--", "false")
	if err != nil {
		t.Fatalf("cached exec failed: %v", err)
	}
	if out != "first\n" {
		t.Errorf("cached exec printed %q", out)
	}
}

func TestCLI_ExecFailureNotCached(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, dir, "exec", "k", "--", "false"); err == nil {
		t.Fatal("exec of a failing command succeeded")
	}
	out, _ := run(t, dir, "has", "k")
	if strings.TrimSpace(out) != "false" {
		t.Errorf("failed command output was cached: has = %q", out)
	}
}

func TestCLI_StatsJSON(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "set", "a", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	out, err := run(t, dir, "stats", "--json")
	statsJSON = false
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	var s statsOutput
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("stats --json is not JSON: %v\n%s", err, out)
	}
	if s.ItemCount != 1 || s.StorageType != "local" {
		t.Errorf("stats = %+v", s)
	}
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	printEntries(&buf, []datacache.KeyValue[string]{
		{Key: "a", Value: "short"},
		{Key: "longer", Value: strings.Repeat("x", 100)},
		{Key: "multi", Value: "one\ntwo"},
	}, 30)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("printed %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[1], "…") {
		t.Errorf("long value not truncated: %q", lines[1])
	}
	if !strings.Contains(lines[2], `one\ntwo`) {
		t.Errorf("newline not escaped: %q", lines[2])
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf, datacache.Stats{
		Hits:            1234,
		Misses:          1,
		ItemCount:       2,
		ApproxSizeBytes: 2048,
		OldestItemAge:   time.Hour,
		StorageType:     datacache.StorageLocal,
		EvictionPolicy:  datacache.EvictLRU,
	})

	out := buf.String()
	for _, want := range []string{"1,234", "2.0 kB", "1 hour ago", "local (lru eviction)"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}
