package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"ratingsync/internal/resolver/guid"
	"ratingsync/internal/services"
)

// SQLiteCatalog is a Catalog backed by the media server database file.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

var _ Catalog = (*SQLiteCatalog)(nil)

// Open connects to an existing catalog database.
func Open(path string) (*SQLiteCatalog, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrCatalog, "catalog", "open", "database not found at "+path, err)
		}
		return nil, services.Wrap(services.ErrCatalog, "catalog", "open", "stat database", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "open", "open sqlite db", err)
	}
	// The media server holds its own connections; keep ours to one writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrCatalog, "catalog", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}
	return &SQLiteCatalog{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *SQLiteCatalog) Path() string { return c.path }

// Close closes the underlying database connection.
func (c *SQLiteCatalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ListLibraries returns the movie and series sections ordered by id.
func (c *SQLiteCatalog) ListLibraries(ctx context.Context) ([]Library, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.section_type, COALESCE(s.agent, ''),
		       (SELECT COUNT(1) FROM metadata_items m
		         WHERE m.library_section_id = s.id AND m.metadata_type IN (?, ?))
		  FROM library_sections s
		 ORDER BY s.id`,
		metadataMovie, metadataShow,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "list libraries", "query", err)
	}
	defer rows.Close()

	var libraries []Library
	for rows.Next() {
		var (
			lib         Library
			sectionType int
		)
		if err := rows.Scan(&lib.ID, &lib.Name, &sectionType, &lib.Agent, &lib.Items); err != nil {
			return nil, services.Wrap(services.ErrCatalog, "catalog", "list libraries", "scan", err)
		}
		libType, ok := libraryTypeForSection(sectionType)
		if !ok {
			continue
		}
		lib.Type = libType
		libraries = append(libraries, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "list libraries", "iterate", err)
	}
	return libraries, nil
}

// ListItems returns the movies, series and episodes of a library ordered by id.
func (c *SQLiteCatalog) ListItems(ctx context.Context, libraryID int64) ([]Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT m.id, COALESCE(m.guid, ''), m.metadata_type, COALESCE(m.title, ''),
		       COALESCE(m."index", 0), COALESCE(p."index", 0), m.audience_rating
		  FROM metadata_items m
		  LEFT JOIN metadata_items p ON p.id = m.parent_id AND p.metadata_type = ?
		 WHERE m.library_section_id = ? AND m.metadata_type IN (?, ?, ?)
		 ORDER BY m.id`,
		metadataSeason, libraryID, metadataMovie, metadataShow, metadataEpisode,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "list items", "query", err)
	}
	defer rows.Close()

	var (
		items []Item
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			item         Item
			metadataType int
			itemIndex    int
			parentIndex  int
			rating       sql.NullFloat64
		)
		if err := rows.Scan(&item.ID, &item.GUID, &metadataType, &item.Title, &itemIndex, &parentIndex, &rating); err != nil {
			return nil, services.Wrap(services.ErrCatalog, "catalog", "list items", "scan", err)
		}
		kind, ok := kindForMetadataType(metadataType)
		if !ok {
			continue
		}
		item.LibraryID = libraryID
		item.Kind = kind
		if kind == guid.KindEpisode {
			item.Season = parentIndex
			item.Episode = itemIndex
		}
		if rating.Valid {
			value := rating.Float64
			item.Rating = &value
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "list items", "iterate", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	if err := c.attachExternalGUIDs(ctx, libraryID, items, index); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *SQLiteCatalog) attachExternalGUIDs(ctx context.Context, libraryID int64, items []Item, index map[int64]int) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT tg.metadata_item_id, t.tag
		  FROM taggings tg
		  JOIN tags t ON t.id = tg.tag_id
		  JOIN metadata_items m ON m.id = tg.metadata_item_id
		 WHERE m.library_section_id = ? AND t.tag_type = ?
		 ORDER BY tg.metadata_item_id, t.id`,
		libraryID, tagTypeExternalGUID,
	)
	if err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "list items", "query external guids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID int64
			tag    string
		)
		if err := rows.Scan(&itemID, &tag); err != nil {
			return services.Wrap(services.ErrCatalog, "catalog", "list items", "scan external guid", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].ExternalGUIDs = append(items[i].ExternalGUIDs, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "list items", "iterate external guids", err)
	}
	return nil
}

// UpdateRatings writes audience ratings in a single transaction and returns
// how many items changed. Items already carrying the rating are left alone.
func (c *SQLiteCatalog) UpdateRatings(ctx context.Context, updates []RatingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrCatalog, "catalog", "update ratings", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE metadata_items
		   SET audience_rating = ?, updated_at = ?
		 WHERE id = ? AND (audience_rating IS NULL OR audience_rating <> ?)`)
	if err != nil {
		return 0, services.Wrap(services.ErrCatalog, "catalog", "update ratings", "prepare", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	changed := 0
	for _, update := range updates {
		res, err := stmt.ExecContext(ctx, update.Rating, now, update.ItemID, update.Rating)
		if err != nil {
			return 0, services.Wrap(services.ErrCatalog, "catalog", "update ratings",
				fmt.Sprintf("item %d", update.ItemID), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, services.Wrap(services.ErrCatalog, "catalog", "update ratings", "rows affected", err)
		}
		changed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, services.Wrap(services.ErrCatalog, "catalog", "update ratings", "commit", err)
	}
	return changed, nil
}
