// ABOUTME: Tests for the probe's identity constants
// ABOUTME: Pins the product identity reports and logs are labeled with
package version

import (
	"strings"
	"testing"
)

func TestProductIdentity(t *testing.T) {
	if Product != "Veepa Audio Probe" {
		t.Errorf("unexpected product name: %q", Product)
	}
	if Manufacturer == "" {
		t.Error("manufacturer must be set")
	}
}

func TestVersionIsSemver(t *testing.T) {
	// Reports from different builds are compared side by side, so the
	// version string has to stay machine-sortable.
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("expected major.minor.patch, got %q", Version)
	}
	for _, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			t.Errorf("non-numeric version component %q in %q", p, Version)
		}
	}
}
