package search

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/grove-tasks/pkg/models"
)

// Index is a local SQLite database holding the last task forest snapshot
// and a searchable table of its nodes.
type Index struct {
	db     *sql.DB
	useFTS bool
}

// Entry is one indexed task.
type Entry struct {
	UUID   string
	Path   string
	Parent string
	Title  string
	Tags   []string
	MTime  string
}

// EntryFromRecord builds an index entry for a node under parent.
func EntryFromRecord(rec models.NodeRecord, parent string) Entry {
	return Entry{
		UUID:   rec.UUID,
		Path:   rec.Path,
		Parent: parent,
		Title:  rec.DisplayTitle(),
		Tags:   rec.Tags(),
		MTime:  rec.MTime,
	}
}

// NewIndex opens or creates the index at dbPath.
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// init creates the database schema
func (idx *Index) init() error {
	idx.useFTS = idx.checkFTS5Support()

	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		etag TEXT NOT NULL,
		forest TEXT NOT NULL,
		saved_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks_meta (
		uuid TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		parent TEXT,
		title TEXT,
		mtime TEXT
	);

	CREATE TABLE IF NOT EXISTS task_tags (
		uuid TEXT NOT NULL,
		tag TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (uuid, position)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_meta_path ON tasks_meta(path);
	CREATE INDEX IF NOT EXISTS idx_task_tags_tag ON task_tags(tag);
	`
	if _, err := idx.db.Exec(schema); err != nil {
		return err
	}

	if idx.useFTS {
		ftsSchema := `
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			uuid UNINDEXED,
			title,
			tags,
			path,
			tokenize = 'unicode61'
		);
		`
		if _, err := idx.db.Exec(ftsSchema); err != nil {
			idx.useFTS = false
		}
	}
	return nil
}

// checkFTS5Support checks if FTS5 module is available
func (idx *Index) checkFTS5Support() bool {
	_, err := idx.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS fts5_test USING fts5(content)")
	if err != nil {
		return false
	}
	_, _ = idx.db.Exec("DROP TABLE IF EXISTS fts5_test")
	return true
}

// SaveSnapshot stores the forest and the etag it was served with, replacing
// any previous snapshot.
func (idx *Index) SaveSnapshot(etag string, forest []*models.TreeNode) error {
	data, err := json.Marshal(forest)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = idx.db.Exec(`
		INSERT INTO snapshot (id, etag, forest, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET etag = excluded.etag, forest = excluded.forest, saved_at = excluded.saved_at
	`, etag, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Snapshot is a cached server forest.
type Snapshot struct {
	ETag    string
	Forest  []*models.TreeNode
	SavedAt time.Time
}

// LoadSnapshot returns the cached forest. ok is false when nothing has been
// saved yet.
func (idx *Index) LoadSnapshot() (snap Snapshot, ok bool, err error) {
	var data string
	row := idx.db.QueryRow("SELECT etag, forest, saved_at FROM snapshot WHERE id = 1")
	if err := row.Scan(&snap.ETag, &data, &snap.SavedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &snap.Forest); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}

// IndexEntries replaces the searchable task table with entries.
func (idx *Index) IndexEntries(entries []Entry) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{"DELETE FROM tasks_meta", "DELETE FROM task_tags"} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if idx.useFTS {
		if _, err := tx.Exec("DELETE FROM tasks_fts"); err != nil {
			return err
		}
	}

	for _, e := range entries {
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO tasks_meta (uuid, path, parent, title, mtime)
			VALUES (?, ?, ?, ?, ?)
		`, e.UUID, e.Path, e.Parent, e.Title, e.MTime)
		if err != nil {
			return err
		}
		for i, tag := range e.Tags {
			if _, err := tx.Exec("INSERT OR REPLACE INTO task_tags (uuid, tag, position) VALUES (?, ?, ?)", e.UUID, tag, i); err != nil {
				return err
			}
		}
		if idx.useFTS {
			_, err = tx.Exec(`
				INSERT INTO tasks_fts (uuid, title, tags, path) VALUES (?, ?, ?, ?)
			`, e.UUID, e.Title, strings.Join(e.Tags, " "), e.Path)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Options for searching
type Options struct {
	Tag   string
	Limit int
}

// Result is one search hit.
type Result struct {
	UUID   string
	Path   string
	Parent string
	Title  string
	MTime  string
}

// Search finds tasks whose title, tags or path match query. An empty query
// with a tag lists every task carrying that tag.
func (idx *Index) Search(query string, opts *Options) ([]Result, error) {
	if opts == nil {
		opts = &Options{Limit: 50}
	}
	if opts.Limit == 0 {
		opts.Limit = 50
	}

	query = strings.TrimSpace(query)
	if idx.useFTS && query != "" {
		return idx.searchWithFTS(query, opts)
	}
	return idx.searchWithoutFTS(query, opts)
}

// ftsQuery quotes every term so user input never reaches the FTS grammar.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// searchWithFTS performs search using FTS5
func (idx *Index) searchWithFTS(query string, opts *Options) ([]Result, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, "tasks_fts MATCH ?")
	args = append(args, ftsQuery(query))

	if opts.Tag != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM task_tags t WHERE t.uuid = m.uuid AND t.tag = ?)")
		args = append(args, opts.Tag)
	}

	searchQuery := fmt.Sprintf(`
		SELECT m.uuid, m.path, m.parent, m.title, m.mtime
		FROM tasks_fts f
		JOIN tasks_meta m ON f.uuid = m.uuid
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	return idx.query(searchQuery, args...)
}

// searchWithoutFTS performs search using LIKE queries on the task table
func (idx *Index) searchWithoutFTS(query string, opts *Options) ([]Result, error) {
	var conditions []string
	var args []any

	if query != "" {
		pattern := "%" + strings.ReplaceAll(query, " ", "%") + "%"
		conditions = append(conditions, `(m.title LIKE ? OR m.path LIKE ?
			OR EXISTS (SELECT 1 FROM task_tags t WHERE t.uuid = m.uuid AND t.tag LIKE ?))`)
		args = append(args, pattern, pattern, pattern)
	}
	if opts.Tag != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM task_tags t WHERE t.uuid = m.uuid AND t.tag = ?)")
		args = append(args, opts.Tag)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	searchQuery := fmt.Sprintf(`
		SELECT m.uuid, m.path, m.parent, m.title, m.mtime
		FROM tasks_meta m
		%s
		ORDER BY m.mtime DESC, m.title
		LIMIT ?
	`, whereClause)
	args = append(args, opts.Limit)

	return idx.query(searchQuery, args...)
}

func (idx *Index) query(q string, args ...any) ([]Result, error) {
	rows, err := idx.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var parent, title, mtime sql.NullString
		if err := rows.Scan(&r.UUID, &r.Path, &parent, &title, &mtime); err != nil {
			return nil, err
		}
		r.Parent, r.Title, r.MTime = parent.String, title.String, mtime.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Tags returns every distinct tag with the number of tasks carrying it.
func (idx *Index) Tags() (map[string]int, error) {
	rows, err := idx.db.Query("SELECT tag, COUNT(DISTINCT uuid) FROM task_tags GROUP BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] = n
	}
	return out, rows.Err()
}

// Close closes the index
func (idx *Index) Close() error {
	return idx.db.Close()
}
