package service

import "testing"

func TestHostGuardAuthorize(t *testing.T) {
	guard := NewHostGuard("expected.onion", "localhost")

	cases := []struct {
		host string
		want bool
	}{
		{"expected.onion", true},
		{"EXPECTED.ONION", true},
		{"Expected.Onion", true},
		{"expected.onion:80", true},
		{"localhost", true},
		{"localhost:8080", true},
		{"other.onion", false},
		{"expected.onion.evil.example", false},
		{"", false},
	}

	for _, c := range cases {
		if got := guard.Authorize(c.host); got != c.want {
			t.Errorf("Authorize(%q) = %v, want %v", c.host, got, c.want)
		}
	}
}

func TestHostGuardNormalizesAllowlist(t *testing.T) {
	guard := NewHostGuard("EXPECTED.ONION", " localhost ", "", "expected.onion")

	hosts := guard.Hosts()
	if len(hosts) != 2 {
		t.Fatalf("expected 2 normalized entries, got %v", hosts)
	}
	if hosts[0] != "expected.onion" || hosts[1] != "localhost" {
		t.Errorf("unexpected allowlist: %v", hosts)
	}
}

func TestHostGuardEmpty(t *testing.T) {
	guard := NewHostGuard()
	if guard.Authorize("anything") {
		t.Error("empty allowlist must reject everything")
	}
}
