package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kit "modwatch/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestParseLevel_AllBranches(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"panic", "panic"},
		{"", "info"},
		{"   nonsense   ", "info"},
	}
	for _, c := range cases {
		lvl := parseLevel(c.in)
		if strings.ToLower(lvl.String()) != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, lvl, c.want)
		}
	}
}

// Init runs once per process so everything that depends on the root logger lives here
func TestInit_Get_Named_C_ErrorFile(t *testing.T) {
	var buf bytes.Buffer
	errPath := filepath.Join(t.TempDir(), "logs", "errors.log")

	Init(Options{
		Level:       "debug",
		Format:      "console",
		Service:     "modwatch",
		Component:   "root",
		Writer:      &buf,
		WithCaller:  true,
		SampleEvery: 2,
		StaticFields: map[string]string{
			"build": "test",
		},
		ErrorFile: errPath,
	})

	// Re-sample each logger to N=1 so lines always emit (pointer receivers)
	rv := Get().Sample(&zerolog.BasicSampler{N: 1})
	rp := &rv
	rp.Info().Str("k", "v").Msg("root-msg")
	rp.Error().Str("name", "t1_abc").Msg("boom-msg")

	nv := Named("ingest").Sample(&zerolog.BasicSampler{N: 1})
	np := &nv
	np.Info().Msg("named-msg")

	ctx := WithSegment(WithRequest(context.Background(), "req-123"), "/var/log/comments.log.2024")
	cv := C(ctx).Sample(&zerolog.BasicSampler{N: 1})
	cp := &cv
	cp.Info().Msg("ctx-msg")

	bgv := C(context.Background()).Sample(&zerolog.BasicSampler{N: 1})
	bgp := &bgv
	bgp.Info().Msg("ctx-empty")

	out := buf.String()
	kit.MustContain(t, out, "root-msg")
	kit.MustContain(t, out, "named-msg")
	kit.MustContain(t, out, "ctx-msg")
	kit.MustContain(t, out, "component=")
	kit.MustContain(t, out, "ingest")
	kit.MustContain(t, out, "request_id=")
	kit.MustContain(t, out, "req-123")
	kit.MustContain(t, out, "segment=")
	kit.MustContain(t, out, "comments.log.2024")
	kit.MustContain(t, out, "build=")
	kit.MustContain(t, out, "service=")

	raw, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	errOut := string(raw)
	kit.MustContain(t, errOut, "boom-msg")
	kit.MustContain(t, errOut, `"name":"t1_abc"`)
	if strings.Contains(errOut, "root-msg") || strings.Contains(errOut, "named-msg") {
		t.Fatalf("error log should only hold error level lines, got %q", errOut)
	}
}

func TestFromEnv_Independently(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "svc-b")
	t.Setenv("LOG_COMPONENT", "comp-b")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")
	t.Setenv("LOG_ERROR_FILE", "/tmp/modwatch-errors.log")
	t.Setenv("LOG_FIELDS", "env=test")

	opt := FromEnv()
	if strings.ToLower(opt.Level) != "warn" {
		t.Fatalf("FromEnv Level = %q, want warn", opt.Level)
	}
	if opt.Format != "json" || opt.Service != "svc-b" || opt.Component != "comp-b" {
		t.Fatalf("FromEnv fields mismatch: %+v", opt)
	}
	if !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("FromEnv caller/sample mismatch: %+v", opt)
	}
	if opt.ErrorFile != "/tmp/modwatch-errors.log" {
		t.Fatalf("FromEnv ErrorFile = %q", opt.ErrorFile)
	}
	if opt.StaticFields["env"] != "test" {
		t.Fatalf("FromEnv StaticFields = %#v", opt.StaticFields)
	}
}

func TestOpenErrorFile_Appends(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "err.log")
	for _, line := range []string{"a\n", "b\n"} {
		f, err := openErrorFile(p)
		if err != nil {
			t.Fatalf("openErrorFile: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = f.Close()
	}
	got, _ := os.ReadFile(p)
	if string(got) != "a\nb\n" {
		t.Fatalf("append mode broken, got %q", got)
	}
}
