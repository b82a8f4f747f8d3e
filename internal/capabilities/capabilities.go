// Package capabilities models the feature flags that switch providers and media
// classes on or off for a batch.
package capabilities

import (
	"fmt"
	"sort"
	"strings"
)

// Capability is a single feature flag.
type Capability uint32

const (
	// TMDB enables resolution of items backed by the TMDB agents.
	TMDB Capability = 1 << iota
	// TVDB enables resolution of items backed by the TVDB agent.
	TVDB
	// NoMovie skips movie libraries.
	NoMovie
	// NoTV skips series libraries.
	NoTV
	// DryRun computes rating changes without writing them to the catalog.
	DryRun
)

var names = map[Capability]string{
	TMDB:    "TMDB",
	TVDB:    "TVDB",
	NoMovie: "NO_MOVIE",
	NoTV:    "NO_TV",
	DryRun:  "DRY_RUN",
}

// userFlags are only enabled when explicitly requested.
var userFlags = []Capability{NoMovie, NoTV, DryRun}

// Set is an immutable collection of capabilities.
type Set uint32

// All returns every capability, user flags included.
func All() Set {
	var s Set
	for c := range names {
		s |= Set(c)
	}
	return s
}

// Defaults returns the provider capabilities with no user flags set.
func Defaults() Set {
	return All().Without(userFlags...)
}

// Parse resolves a list of user flag names on top of Defaults. Unknown names
// are rejected; provider flags may be listed but are ignored since they are
// governed by credentials.
func Parse(values []string) (Set, error) {
	set := Defaults()
	for _, raw := range values {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		c, ok := lookup(name)
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", raw)
		}
		set = set.With(c)
	}
	return set, nil
}

// Split breaks a semicolon separated flag list into its parts.
func Split(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookup(name string) (Capability, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Has reports whether c is enabled.
func (s Set) Has(c Capability) bool {
	return s&Set(c) != 0
}

// With returns a copy of s with the capabilities enabled.
func (s Set) With(cs ...Capability) Set {
	for _, c := range cs {
		s |= Set(c)
	}
	return s
}

// Without returns a copy of s with the capabilities disabled.
func (s Set) Without(cs ...Capability) Set {
	for _, c := range cs {
		s &^= Set(c)
	}
	return s
}

// Names returns the enabled capability names in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(names))
	for c, n := range names {
		if s.Has(c) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.Names(), ", ") + "]"
}

func (c Capability) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Capability(%d)", uint32(c))
}
