package geoip

import (
	"testing"
)

func TestNew_EmptyPath(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("expected no error for empty path, got %v", err)
	}
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location for disabled resolver, got %+v", loc)
	}
	if r.Enabled() {
		t.Error("expected resolver to be disabled")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	r, err := New("/nonexistent/path.mmdb")
	if err != nil {
		t.Fatalf("expected no error for missing file (graceful fallback), got %v", err)
	}
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestLookup_NilResolver(t *testing.T) {
	var r *Resolver
	if loc := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location from nil resolver, got %+v", loc)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected no error closing nil resolver, got %v", err)
	}
}

func TestParseIP(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"203.0.113.7", "203.0.113.7"},
		{"203.0.113.7:51234", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"not-an-ip", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := parseIP(tt.addr)
		if tt.want == "" {
			if got != nil {
				t.Errorf("parseIP(%q) = %v, want nil", tt.addr, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("parseIP(%q) = %v, want %s", tt.addr, got, tt.want)
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	r, _ := New("")
	if err := r.Close(); err != nil {
		t.Errorf("expected no error closing nil resolver, got %v", err)
	}
}

func TestRoutable(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"203.0.113.7", true},
		{"2001:db8::1", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"192.168.0.10", false},
		{"::1", false},
		{"fe80::1", false},
		{"0.0.0.0", false},
	}
	for _, tt := range tests {
		if got := routable(parseIP(tt.addr)); got != tt.want {
			t.Errorf("routable(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
	if routable(nil) {
		t.Error("nil ip should not be routable")
	}
}

func TestCityName(t *testing.T) {
	if got := cityName(map[string]string{"en": "Lisbon", "pt": "Lisboa"}); got != "Lisbon" {
		t.Errorf("expected English name, got %q", got)
	}
	if got := cityName(map[string]string{"pt": "Lisboa"}); got != "Lisboa" {
		t.Errorf("expected fallback name, got %q", got)
	}
	if got := cityName(nil); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
}
