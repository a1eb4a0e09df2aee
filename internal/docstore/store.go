package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrInvalidDocument = errors.New("document must be a JSON object")
	ErrInvalidField    = errors.New("invalid field name")
	ErrInvalidQuery    = errors.New("invalid query")
)

// Document is a stored JSON record addressed by collection and id.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DataTo decodes the document body into v.
func (d Document) DataTo(v interface{}) error {
	return json.Unmarshal(d.Data, v)
}

// Session is the set of document operations shared by Store and Tx.
type Session interface {
	Create(ctx context.Context, collection string, data interface{}) (string, error)
	Set(ctx context.Context, collection, id string, data interface{}) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
}

// Store is a SQLite backed document store.
// The pool holds a single connection, so Batch transactions are serialized
// and a Batch callback must only use its Tx.
type Store struct {
	db     *sql.DB
	path   string
	logger *zerolog.Logger

	mu       sync.RWMutex
	watchers map[*watcher]struct{}
	closed   chan struct{}
	once     sync.Once
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Document store initialized")
	return &Store{
		db:       db,
		path:     path,
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
		closed:   make(chan struct{}),
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (collection, id)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            document_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops all watchers and closes the database.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.db.Close()
}

// Create stores data under a new random id.
func (s *Store) Create(ctx context.Context, collection string, data interface{}) (string, error) {
	id := uuid.NewString()
	if err := insertDocument(ctx, s.db, collection, id, data); err != nil {
		return "", err
	}
	s.notify(collection)
	return id, nil
}

// Set creates or replaces the document at id.
func (s *Store) Set(ctx context.Context, collection, id string, data interface{}) error {
	if err := upsertDocument(ctx, s.db, collection, id, data); err != nil {
		return err
	}
	s.notify(collection)
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, s.db, collection, id)
}

// Update merges the top-level fields of patch into the document.
// A nil value removes the field.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	if err := updateDocument(ctx, s.db, collection, id, patch); err != nil {
		return err
	}
	s.notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := deleteDocument(ctx, s.db, collection, id); err != nil {
		return err
	}
	s.notify(collection)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	return queryDocuments(ctx, s.db, collection, q)
}

func encode(data interface{}) ([]byte, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		raw = b
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		return nil, ErrInvalidDocument
	}
	return raw, nil
}

func checkKey(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidQuery)
	}
	if id == "" {
		return fmt.Errorf("%w: empty document id", ErrInvalidQuery)
	}
	return nil
}

func insertDocument(ctx context.Context, ex execer, collection, id string, data interface{}) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(raw), now, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func upsertDocument(ctx context.Context, ex execer, collection, id string, data interface{}) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

func getDocument(ctx context.Context, ex execer, collection, id string) (Document, error) {
	if err := checkKey(collection, id); err != nil {
		return Document{}, err
	}
	var (
		doc  Document
		data string
	)
	err := ex.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Collection = collection
	doc.Data = json.RawMessage(data)
	return doc, nil
}

func updateDocument(ctx context.Context, ex execer, collection, id string, patch map[string]interface{}) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	for field := range patch {
		if !fieldPattern.MatchString(field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	res, err := ex.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = ? WHERE collection = ? AND id = ?`,
		string(raw), time.Now().UTC(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return expectAffected(res, collection, id)
}

func deleteDocument(ctx context.Context, ex execer, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectAffected(res, collection, id)
}

func expectAffected(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func queryDocuments(ctx context.Context, ex execer, collection string, q Query) ([]Document, error) {
	query, args, err := q.toSQL(collection)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc  Document
			data string
		)
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Collection = collection
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
