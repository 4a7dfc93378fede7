package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// execute runs the CLI with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// env returns global flags pointing at a fresh filesystem root and Redis.
func env(t *testing.T) []string {
	t.Helper()
	mr := miniredis.RunT(t)
	return []string{
		"--env-file", "",
		"--dir", t.TempDir(),
		"--redis-url", "redis://" + mr.Addr() + "/0",
		"-n", "reports",
	}
}

func with(base []string, args ...string) []string {
	return append(append([]string(nil), base...), args...)
}

func TestSetGet(t *testing.T) {
	base := env(t)

	if _, err := execute(t, with(base, "set", "q3", `{"revenue": 12}`)...); err != nil {
		t.Fatalf("set error = %v", err)
	}
	out, err := execute(t, with(base, "get", "q3")...)
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if !strings.Contains(out, `"revenue": 12`) {
		t.Errorf("get output = %q, want the stored object", out)
	}
}

func TestGet_Miss(t *testing.T) {
	_, err := execute(t, with(env(t), "get", "missing")...)
	if !errors.Is(err, errMiss) {
		t.Errorf("get error = %v, want errMiss", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	base := env(t)
	execute(t, with(base, "set", "a", "1")...)
	execute(t, with(base, "set", "b", "2")...)

	out, err := execute(t, with(base, "delete", "a")...)
	if err != nil || !strings.Contains(out, "deleted a") {
		t.Errorf("delete = %q, %v", out, err)
	}
	if _, err := execute(t, with(base, "get", "a")...); !errors.Is(err, errMiss) {
		t.Errorf("get after delete error = %v, want errMiss", err)
	}
	out, err = execute(t, with(base, "delete", "missing")...)
	if err != nil || !strings.Contains(out, "missing not present") {
		t.Errorf("delete of never-stored key = %q, %v, want not present", out, err)
	}

	if _, err := execute(t, with(base, "clear")...); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if _, err := execute(t, with(base, "get", "b")...); !errors.Is(err, errMiss) {
		t.Errorf("get after clear error = %v, want errMiss", err)
	}
}

func TestStats(t *testing.T) {
	base := env(t)
	execute(t, with(base, "set", "a", "1")...)
	execute(t, with(base, "set", "b", "2", "--no-expire")...)

	out, err := execute(t, with(base, "stats")...)
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	for _, want := range []string{"Entries:      2", "Expired:      0", "No expiry:    1"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestVerify_Corrupt(t *testing.T) {
	base := env(t)
	execute(t, with(base, "set", "a", "1")...)

	out, err := execute(t, with(base, "verify")...)
	if err != nil {
		t.Fatalf("verify error = %v\n%s", err, out)
	}

	files, _ := filepath.Glob(filepath.Join(base[3], "reports", "*.json"))
	if len(files) != 1 {
		t.Fatalf("found %d data files, want 1", len(files))
	}
	if err := os.WriteFile(files[0], []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, with(base, "verify")...)
	if !errors.Is(err, errCorrupt) {
		t.Errorf("verify error = %v, want errCorrupt", err)
	}
	if !strings.Contains(out, "1 corrupt") {
		t.Errorf("verify output = %q", out)
	}
}

func TestBench(t *testing.T) {
	base := env(t)
	out, err := execute(t, with(base, "bench", "--ops", "200", "--keys", "20", "--format", "markdown", "--compare")...)
	if err != nil {
		t.Fatalf("bench error = %v", err)
	}
	for _, want := range []string{"# Tiered Cache Benchmark", "memory → redis → disk", "## chain vs memory"} {
		if !strings.Contains(out, want) {
			t.Errorf("bench output missing %q", want)
		}
	}

	if _, err := execute(t, with(base, "bench", "--format", "html")...); err == nil {
		t.Error("bench should reject an unknown format")
	}
}

func TestInvalidSettings(t *testing.T) {
	_, err := execute(t, with(env(t), "--serializer", "pickle", "get", "a")...)
	if err == nil {
		t.Error("expected an error for an unknown serializer")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{`[1,2]`, []any{float64(1), float64(2)}},
		{`42`, float64(42)},
		{`"quoted"`, "quoted"},
		{`plain text`, "plain text"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	base := env(t)
	path := filepath.Join(t.TempDir(), "warm.jsonl")
	data := `{"key":"a","value":{"n":1}}
{"key":"b","value":"two","ttl":60}
broken
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, with(base, "load", "-q", path)...)
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if !strings.Contains(out, "loaded 2 records into reports (1 skipped)") {
		t.Errorf("load output = %q", out)
	}

	out, err = execute(t, with(base, "get", "b")...)
	if err != nil || !strings.Contains(out, `"two"`) {
		t.Errorf("get b = %q, %v", out, err)
	}
}
