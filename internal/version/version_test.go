package version

import "testing"

func TestParseProduct(t *testing.T) {
	tests := []struct {
		product string
		want    string
		wantErr bool
	}{
		{"Chrome/124.0.6367.60", "124.0.6367.60", false},
		{"HeadlessChrome/108.0.5359.71", "108.0.5359.71", false},
		{"Chromium/109.0.5414.0", "109.0.5414.0", false},
		{"124.0.6367.60", "124.0.6367.60", false},
		{"Chrome/", "", true},
		{"", "", true},
		{"Chrome/not-a-version", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			v, err := ParseProduct(tt.product)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProduct(%q) error = %v, wantErr %v", tt.product, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := v.Original(); got != tt.want {
				t.Errorf("ParseProduct(%q) = %s, want %s", tt.product, got, tt.want)
			}
		})
	}
}

func TestGateActive(t *testing.T) {
	tests := []struct {
		product string
		want    bool
	}{
		// Before the fix.
		{"Chrome/107.0.5304.110", false},
		{"Chrome/108.0.5358.0", false},
		// Fixed 108 line.
		{"Chrome/108.0.5359.0", true},
		{"Chrome/108.0.5359.124", true},
		{"HeadlessChrome/108.0.5400.0", true},
		// 109 line regressed until 5414.
		{"Chrome/109.0.5400.0", false},
		{"Chrome/109.0.5413.9", false},
		{"Chrome/109.0.5414.0", true},
		{"Chrome/109.0.5414.74", true},
		// Everything after.
		{"Chrome/110.0.5481.77", true},
		{"Chrome/124.0.6367.60", true},
		// Unparseable fails closed.
		{"SomeBrowser/x.y", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			g := NewGate(tt.product)
			if got := g.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v (%s)", got, tt.want, g.Reason())
			}
		})
	}
}

func TestGateEnvOverride(t *testing.T) {
	t.Setenv(EnvPatched, "1")

	// A broken engine version is allowed through when the environment
	// declares the engine patched.
	g := NewGate("Chrome/107.0.5304.110")
	if !g.Active() {
		t.Fatalf("Active() = false with %s set, want true", EnvPatched)
	}

	// Even an unknown version passes.
	if g := NewGate("garbage"); !g.Active() {
		t.Fatal("Active() = false for unparseable product with env override")
	}
}

func TestGateReason(t *testing.T) {
	g := NewGate("Chrome/124.0.6367.60")
	if g.Reason() == "" {
		t.Fatal("Reason() returned empty string")
	}
	if g.Version() == nil {
		t.Fatal("Version() = nil for parseable product")
	}
}
