// Package version gates the window-creation path on the engine build.
//
// Engines in a known-broken range deliver two window-open notifications
// for a single request, which would open every popup twice. The gate is
// active (window creation allowed) only when the running engine carries
// the fix, or when the shell declares its vendored engine patched via
// the environment.
package version

import (
	"fmt"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// EnvPatched marks the engine as carrying the window-open fix
// regardless of its version. Set it when running a vendored engine with
// the patch backported.
const EnvPatched = "PERCH_WINDOWOPEN_PATCHED"

// fixedRanges are the engine versions that ship the window-open fix.
// The fix landed in 108.0.5359 and was lost again in the 109 line until
// 109.0.5414.
var fixedRanges = []goversion.Constraints{
	goversion.MustConstraints(goversion.NewConstraint(">= 108.0.5359, < 109.0.0")),
	goversion.MustConstraints(goversion.NewConstraint(">= 109.0.5414")),
}

// Gate decides whether window-creation requests may be honored.
type Gate struct {
	product string
	version *goversion.Version
	patched bool
}

// NewGate builds a gate from the engine's product string, e.g.
// "Chrome/124.0.6367.60" or "HeadlessChrome/108.0.5359.71". An
// unparseable product fails closed.
func NewGate(product string) *Gate {
	g := &Gate{
		product: product,
		patched: os.Getenv(EnvPatched) != "",
	}
	if v, err := ParseProduct(product); err == nil {
		g.version = v
	}
	return g
}

// Active reports whether window-creation requests may be forwarded.
func (g *Gate) Active() bool {
	if g.patched {
		return true
	}
	if g.version == nil {
		return false
	}
	for _, c := range fixedRanges {
		if c.Check(g.version) {
			return true
		}
	}
	return false
}

// Version is the parsed engine version, nil when the product string was
// unparseable.
func (g *Gate) Version() *goversion.Version {
	return g.version
}

// Reason explains the gate's state for diagnostics.
func (g *Gate) Reason() string {
	switch {
	case g.patched:
		return fmt.Sprintf("%s set, treating engine as patched", EnvPatched)
	case g.version == nil:
		return fmt.Sprintf("engine version unknown (product %q), failing closed", g.product)
	case g.Active():
		return fmt.Sprintf("engine %s carries the window-open fix", g.version)
	default:
		return fmt.Sprintf("engine %s duplicates window-open notifications", g.version)
	}
}

// ParseProduct extracts the version from an engine product string. The
// part before the first slash is the product name and is ignored, so
// "Chrome/124.0.6367.60" and "HeadlessChrome/124.0.6367.60" parse the
// same.
func ParseProduct(product string) (*goversion.Version, error) {
	s := product
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty engine product string")
	}
	v, err := goversion.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse engine product %q: %w", product, err)
	}
	return v, nil
}
