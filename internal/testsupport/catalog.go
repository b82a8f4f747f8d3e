package testsupport

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"ratingsync/internal/catalog"
)

// catalogSchema is the subset of the media server schema ratingsync reads.
const catalogSchema = `
CREATE TABLE library_sections (
    id INTEGER PRIMARY KEY,
    name TEXT,
    section_type INTEGER,
    agent TEXT
);
CREATE TABLE metadata_items (
    id INTEGER PRIMARY KEY,
    library_section_id INTEGER,
    parent_id INTEGER,
    metadata_type INTEGER,
    guid TEXT,
    title TEXT,
    "index" INTEGER,
    audience_rating REAL,
    updated_at INTEGER
);
CREATE TABLE tags (
    id INTEGER PRIMARY KEY,
    tag TEXT,
    tag_type INTEGER
);
CREATE TABLE taggings (
    id INTEGER PRIMARY KEY,
    metadata_item_id INTEGER,
    tag_id INTEGER
);
`

// Section describes a library fixture. SectionType follows the media server
// (1 movie, 2 show, 8 music).
type Section struct {
	ID          int64
	Name        string
	SectionType int
	Agent       string
}

// Metadata describes a metadata_items fixture row. MetadataType follows the
// media server (1 movie, 2 show, 3 season, 4 episode).
type Metadata struct {
	ID           int64
	SectionID    int64
	ParentID     int64
	MetadataType int
	GUID         string
	Title        string
	Index        int
	Rating       *float64
	External     []string
}

// CatalogFixture is a media server database seeded for a test.
type CatalogFixture struct {
	Path string
	db   *sql.DB
}

// NewCatalog creates a database at path holding the given rows.
func NewCatalog(t testing.TB, path string, sections []Section, items []Metadata) *CatalogFixture {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir catalog dir: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, catalogSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for _, s := range sections {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO library_sections (id, name, section_type, agent) VALUES (?, ?, ?, ?)`,
			s.ID, s.Name, s.SectionType, s.Agent); err != nil {
			t.Fatalf("insert section %d: %v", s.ID, err)
		}
	}
	tagID := int64(0)
	for _, m := range items {
		var parent any
		if m.ParentID != 0 {
			parent = m.ParentID
		}
		var rating any
		if m.Rating != nil {
			rating = *m.Rating
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO metadata_items (id, library_section_id, parent_id, metadata_type, guid, title, "index", audience_rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.SectionID, parent, m.MetadataType, m.GUID, m.Title, m.Index, rating); err != nil {
			t.Fatalf("insert item %d: %v", m.ID, err)
		}
		for _, ext := range m.External {
			tagID++
			if _, err := db.ExecContext(ctx, `INSERT INTO tags (id, tag, tag_type) VALUES (?, ?, 314)`, tagID, ext); err != nil {
				t.Fatalf("insert tag: %v", err)
			}
			if _, err := db.ExecContext(ctx, `INSERT INTO taggings (metadata_item_id, tag_id) VALUES (?, ?)`, m.ID, tagID); err != nil {
				t.Fatalf("insert tagging: %v", err)
			}
		}
	}
	return &CatalogFixture{Path: path, db: db}
}

// Rating reads back the audience rating of an item.
func (f *CatalogFixture) Rating(t testing.TB, itemID int64) (float64, bool) {
	t.Helper()

	var rating sql.NullFloat64
	if err := f.db.QueryRow(`SELECT audience_rating FROM metadata_items WHERE id = ?`, itemID).Scan(&rating); err != nil {
		t.Fatalf("read rating %d: %v", itemID, err)
	}
	return rating.Float64, rating.Valid
}

// MustOpenCatalog opens the fixture through the production catalog and
// registers cleanup.
func MustOpenCatalog(t testing.TB, path string) *catalog.SQLiteCatalog {
	t.Helper()

	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
