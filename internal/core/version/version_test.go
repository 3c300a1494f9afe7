package version

import (
	"strings"
	"testing"
)

func TestInfoDefaults(t *testing.T) {
	bi := Info()
	if bi.Version != "dev" || bi.Commit != "none" || bi.Date != "unknown" {
		t.Fatalf("unexpected defaults: %+v", bi)
	}
	if ua := UserAgent(); !strings.HasPrefix(ua, "modwatch/dev ") {
		t.Fatalf("user agent = %q", ua)
	}
}
