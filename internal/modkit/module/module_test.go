package module

import (
	"context"
	"reflect"
	"strings"
	"testing"

	phttp "modwatch/internal/platform/net/http"
	kit "modwatch/internal/platform/testkit"
)

type runner interface{ Run(ctx context.Context) error }

type fakeRunner struct{ id string }

func (fakeRunner) Run(context.Context) error { return nil }

type bundle struct {
	hidden runner
	Runner runner
}

type fakeModule struct {
	name  string
	ports any
}

func (f fakeModule) MountRoutes(phttp.Router) {}
func (f fakeModule) Ports() any              { return f.ports }
func (f fakeModule) Name() string            { return f.name }

var _ Module = fakeModule{}

func TestPortsOf(t *testing.T) {
	want := fakeRunner{id: "recheck"}
	cases := []struct {
		label string
		ports any
		ok    bool
	}{
		{"direct", want, true},
		{"struct field", bundle{Runner: want}, true},
		{"pointer bundle", &bundle{Runner: want}, true},
		{"unexported only", bundle{hidden: want}, false},
		{"nil pointer", (*bundle)(nil), false},
		{"nil ports", nil, false},
		{"scalar", 42, false},
	}
	for _, tc := range cases {
		got, ok := PortsOf[runner](fakeModule{name: "recheck", ports: tc.ports})
		if ok != tc.ok {
			t.Fatalf("%s: ok = %v", tc.label, ok)
		}
		if ok && got.(fakeRunner).id != "recheck" {
			t.Fatalf("%s: got %#v", tc.label, got)
		}
	}
}

func TestMustPortsOf(t *testing.T) {
	m := fakeModule{name: "ingest", ports: bundle{Runner: fakeRunner{id: "x"}}}
	if r := MustPortsOf[runner](m); r.(fakeRunner).id != "x" {
		t.Fatalf("runner = %#v", r)
	}
	got := kit.MustPanic(t, func() { _ = MustPortsOf[runner](fakeModule{name: "status"}) })
	if msg, _ := got.(string); !strings.Contains(msg, "status") || !strings.Contains(msg, "runner") {
		t.Fatalf("panic = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	kit.Serial(t)
	Reset()
	t.Cleanup(Reset)

	if Register("recheck", bundle{Runner: fakeRunner{id: "a"}}) {
		t.Fatalf("first register reported a replacement")
	}
	if !Register("recheck", bundle{Runner: fakeRunner{id: "b"}}) {
		t.Fatalf("second register should replace")
	}
	Register("ingest", "ports")

	b, ok := PortsAs[bundle]("recheck")
	if !ok || b.Runner.(fakeRunner).id != "b" {
		t.Fatalf("PortsAs = %#v %v", b, ok)
	}
	if _, ok := PortsAs[int]("ingest"); ok {
		t.Fatalf("wrong type should miss")
	}
	if _, ok := PortsAs[string]("missing"); ok {
		t.Fatalf("unknown name should miss")
	}
	if got := Names(); !reflect.DeepEqual(got, []string{"ingest", "recheck"}) {
		t.Fatalf("names = %v", got)
	}
}
