package sqlstore

import (
	"context"
	"database/sql"
)

// Schema is the subset of the CourtListener tables the indexer reads. It is used to
// bootstrap local sqlite stores for development and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS audio_audio (
	id INTEGER PRIMARY KEY,
	date_created TEXT NOT NULL,
	case_name TEXT,
	docket_id INTEGER,
	duration INTEGER,
	local_path_mp3 TEXT
);
CREATE TABLE IF NOT EXISTS search_opinion (
	id INTEGER PRIMARY KEY,
	date_created TEXT NOT NULL,
	cluster_id INTEGER,
	type TEXT,
	plain_text TEXT
);
CREATE TABLE IF NOT EXISTS people_db_person (
	id INTEGER PRIMARY KEY,
	date_created TEXT NOT NULL,
	name_first TEXT,
	name_last TEXT,
	is_alias_of_id INTEGER
);
CREATE TABLE IF NOT EXISTS people_db_position (
	id INTEGER PRIMARY KEY,
	person_id INTEGER NOT NULL,
	court_id TEXT,
	position_type TEXT
);
CREATE TABLE IF NOT EXISTS search_recapdocument (
	id INTEGER PRIMARY KEY,
	date_created TEXT NOT NULL,
	docket_entry_id INTEGER,
	document_number TEXT,
	plain_text TEXT
);
`

// CreateSchema creates the tables in Schema if they do not exist
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
