package resolver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/kvcache"
	"ratingsync/internal/providers/tmdb"
	"ratingsync/internal/resolver"
	"ratingsync/internal/resolver/guid"
	"ratingsync/internal/services"
)

type stubTVDB struct {
	calls  atomic.Int32
	series map[string]string
	err    error
}

func (s *stubTVDB) SeriesIMDbID(_ context.Context, seriesID string) (string, error) {
	s.calls.Add(1)
	return s.series[seriesID], s.err
}

func (s *stubTVDB) EpisodeIMDbID(_ context.Context, seriesID string, season, episode int) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	if seriesID == "121361" && season == 1 && episode == 1 {
		return "tt0944947", nil
	}
	return "", nil
}

func TestResolveTMDBMovieCachesResult(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"imdb_id":"tt0133093"}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("tmdb.New: %v", err)
	}
	caches := kvcache.OpenSet("", nil)
	res := resolver.New(resolver.Options{
		Caches:       caches,
		TMDB:         client,
		Capabilities: capabilities.Defaults(),
	})

	ref := resolver.Reference{Provider: guid.ProviderTMDB, Kind: guid.KindMovie, ID: "603"}
	for i := 0; i < 2; i++ {
		id, found, err := res.Resolve(context.Background(), ref)
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
		if !found || id != "tt0133093" {
			t.Fatalf("Resolve #%d = %q, %v; want tt0133093", i+1, id, found)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 network call, got %d", calls.Load())
	}
	if v, _ := caches.Get(kvcache.TMDB).Get("603"); v != "tt0133093" {
		t.Errorf("cache value = %q", v)
	}
}

func TestResolveTVDBEpisode(t *testing.T) {
	stub := &stubTVDB{}
	caches := kvcache.OpenSet("", nil)
	res := resolver.New(resolver.Options{Caches: caches, TVDB: stub, Capabilities: capabilities.Defaults()})

	ref, ok := guid.Parse("com.plexapp.agents.thetvdb://121361/1/1?lang=en", guid.KindEpisode)
	if !ok {
		t.Fatal("guid did not parse")
	}
	id, found, err := res.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !found || id != "tt0944947" {
		t.Fatalf("Resolve = %q, %v; want tt0944947", id, found)
	}
	if v, _ := caches.Get(kvcache.TVDB).Get("121361/1/1"); v != "tt0944947" {
		t.Errorf("episode should be cached under composite key, got %q", v)
	}
}

func TestResolveBlacklistHitMakesNoCalls(t *testing.T) {
	stub := &stubTVDB{series: map[string]string{"42": "tt4242424"}}
	caches := kvcache.OpenSet("", nil)
	caches.Get(kvcache.TVDBBlacklist).Put("42", kvcache.NotFound)
	res := resolver.New(resolver.Options{Caches: caches, TVDB: stub, Capabilities: capabilities.Defaults()})

	id, found, err := res.Resolve(context.Background(), resolver.Reference{Provider: guid.ProviderTVDB, Kind: guid.KindSeries, ID: "42"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if found || id != "" {
		t.Fatalf("blacklisted key should resolve to nothing, got %q", id)
	}
	if stub.calls.Load() != 0 {
		t.Fatalf("expected zero network calls, got %d", stub.calls.Load())
	}
}

func TestResolveMissIsBlacklisted(t *testing.T) {
	stub := &stubTVDB{series: map[string]string{}}
	caches := kvcache.OpenSet("", nil)
	res := resolver.New(resolver.Options{Caches: caches, TVDB: stub, Capabilities: capabilities.Defaults()})
	ref := resolver.Reference{Provider: guid.ProviderTVDB, Kind: guid.KindSeries, ID: "7"}

	for i := 0; i < 2; i++ {
		if _, found, err := res.Resolve(context.Background(), ref); err != nil || found {
			t.Fatalf("Resolve #%d = %v, %v", i+1, found, err)
		}
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("second lookup should hit the blacklist, calls = %d", stub.calls.Load())
	}
	if _, ok := caches.Get(kvcache.TVDBBlacklist).Get("7"); !ok {
		t.Error("miss should be recorded in the blacklist")
	}
}

func TestResolveProviderDisabled(t *testing.T) {
	stub := &stubTVDB{}
	res := resolver.New(resolver.Options{
		Caches:       kvcache.OpenSet("", nil),
		TVDB:         stub,
		Capabilities: capabilities.Defaults().Without(capabilities.TVDB),
	})

	_, _, err := res.Resolve(context.Background(), resolver.Reference{Provider: guid.ProviderTVDB, Kind: guid.KindSeries, ID: "1"})
	if !errors.Is(err, services.ErrProviderDisabled) {
		t.Fatalf("expected ErrProviderDisabled, got %v", err)
	}

	_, _, err = res.Resolve(context.Background(), resolver.Reference{Provider: guid.ProviderTMDB, Kind: guid.KindMovie, ID: "1"})
	if !errors.Is(err, services.ErrProviderDisabled) {
		t.Fatalf("nil tmdb client should be disabled, got %v", err)
	}
	if stub.calls.Load() != 0 {
		t.Fatal("disabled provider must not be called")
	}
}

func TestResolveProviderErrorIsAPIError(t *testing.T) {
	stub := &stubTVDB{err: errors.New("connection reset")}
	caches := kvcache.OpenSet("", nil)
	res := resolver.New(resolver.Options{Caches: caches, TVDB: stub, Capabilities: capabilities.Defaults()})

	_, _, err := res.Resolve(context.Background(), resolver.Reference{Provider: guid.ProviderTVDB, Kind: guid.KindSeries, ID: "1"})
	if !errors.Is(err, services.ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if caches.Get(kvcache.TVDBBlacklist).Len() != 0 {
		t.Error("failed lookups must not be blacklisted")
	}
}

func TestResolveAgentMapping(t *testing.T) {
	caches := kvcache.OpenSet("", nil)
	res := resolver.New(resolver.Options{Caches: caches, Capabilities: capabilities.Defaults()})

	ref, ok := guid.FromExternal([]string{"imdb://tt0133093", "tmdb://603"}, guid.KindMovie)
	if !ok {
		t.Fatal("external guids did not parse")
	}
	ref.AgentID = "5d776825880197001ec967c2"

	id, found, err := res.Resolve(context.Background(), ref)
	if err != nil || !found || id != "tt0133093" {
		t.Fatalf("Resolve = %q, %v, %v", id, found, err)
	}
	if v, _ := caches.Get(kvcache.MovieAgentMapping).Get(ref.AgentID); v != "tt0133093" {
		t.Errorf("agent mapping = %q", v)
	}

	plexOnly := resolver.Reference{Provider: guid.ProviderPlex, Kind: guid.KindMovie, ID: ref.AgentID}
	id, found, err = res.Resolve(context.Background(), plexOnly)
	if err != nil || !found || id != "tt0133093" {
		t.Fatalf("plex reference should use the mapping, got %q, %v, %v", id, found, err)
	}
}
