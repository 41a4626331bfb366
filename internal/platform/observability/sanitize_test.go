package observability

import (
	"strings"
	"testing"
)

func TestSanitizeRoute(t *testing.T) {
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected / for empty route, got %q", got)
	}
	if got := SanitizeRoute("/orders\x00\x1b[31m"); got != "/orders[31m" {
		t.Fatalf("expected control characters stripped, got %q", got)
	}
	long := "/" + strings.Repeat("a", 400)
	if got := SanitizeRoute(long); len(got) != 180 {
		t.Fatalf("expected route capped at 180, got %d", len(got))
	}
}

func TestSanitizeUserID(t *testing.T) {
	if got := SanitizeUserID(""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if got := SanitizeUserID("usr_1\nextra"); got != "usr_1\nextra" {
		t.Fatalf("newline is kept, got %q", got)
	}
	if got := SanitizeUserID(strings.Repeat("x", 100)); len(got) != 64 {
		t.Fatalf("expected id capped at 64, got %d", len(got))
	}
}
