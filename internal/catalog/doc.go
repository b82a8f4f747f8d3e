// Package catalog reads libraries and items from the media server's SQLite
// database and writes audience ratings back.
//
// The database belongs to the media server; ratingsync never creates or
// migrates tables. Only the columns listed below are touched:
//
//	library_sections  id, name, section_type, agent
//	metadata_items    id, library_section_id, parent_id, metadata_type,
//	                  guid, title, "index", audience_rating, updated_at
//	tags, taggings    external guids of new-agent items (tag_type 314)
//
// All failures wrap services.ErrCatalog and are fatal to the process.
package catalog
