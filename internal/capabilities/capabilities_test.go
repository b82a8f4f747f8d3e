package capabilities_test

import (
	"reflect"
	"testing"

	"ratingsync/internal/capabilities"
)

func TestDefaultsExcludeUserFlags(t *testing.T) {
	set := capabilities.Defaults()
	if !set.Has(capabilities.TMDB) || !set.Has(capabilities.TVDB) {
		t.Fatalf("expected provider flags enabled, got %s", set)
	}
	for _, c := range []capabilities.Capability{capabilities.NoMovie, capabilities.NoTV, capabilities.DryRun} {
		if set.Has(c) {
			t.Fatalf("expected %s disabled by default", c)
		}
	}
}

func TestParseEnablesListedUserFlags(t *testing.T) {
	set, err := capabilities.Parse(capabilities.Split("no_tv; DRY_RUN;"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !set.Has(capabilities.NoTV) || !set.Has(capabilities.DryRun) {
		t.Fatalf("expected NO_TV and DRY_RUN, got %s", set)
	}
	if set.Has(capabilities.NoMovie) {
		t.Fatalf("NO_MOVIE should stay disabled, got %s", set)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := capabilities.Parse([]string{"NO_MUSIC"}); err == nil {
		t.Fatal("expected error for unknown capability")
	}
}

func TestWithoutAndNames(t *testing.T) {
	set := capabilities.Defaults().Without(capabilities.TVDB)
	want := []string{"TMDB"}
	if got := set.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	if set.String() != "[TMDB]" {
		t.Fatalf("unexpected String: %q", set.String())
	}
}
