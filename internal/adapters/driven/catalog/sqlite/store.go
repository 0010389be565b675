package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/regsift/regsift/internal/adapters/driven/catalog/sqlite/migrations"
	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// Store is the SQLite-backed chunk catalog.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a catalog at the specified data directory.
// If dataDir is empty, defaults to ~/.regsift/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".regsift", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "catalog.db")

	// WAL mode for concurrent readers during ingestion runs.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveChunks replaces the chunks of one source file and records its
// manifest entry in a single transaction. Stale chunks from an earlier
// version of the file are removed first, so a shrinking file never
// leaves orphans behind.
func (s *Store) SaveChunks(ctx context.Context, chunks []domain.Chunk, state driven.FileState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_file = ?", state.Path); err != nil {
		return fmt.Errorf("deleting stale chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, vendor, device, peripheral, register, address, source_file, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			vendor = excluded.vendor,
			device = excluded.device,
			peripheral = excluded.peripheral,
			register = excluded.register,
			address = excluded.address,
			source_file = excluded.source_file,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		m := c.Metadata
		_, err := stmt.ExecContext(ctx, c.ID, c.Text, m.Vendor, m.Device, m.Peripheral,
			m.Register, int64(m.Address), m.SourceFile, float32SliceToBytes(c.Embedding))
		if err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (path, vendor, sha256, chunks, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			vendor = excluded.vendor,
			sha256 = excluded.sha256,
			chunks = excluded.chunks,
			indexed_at = excluded.indexed_at
	`, state.Path, state.Vendor, state.SHA256, state.Chunks, state.IndexedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving file state: %w", err)
	}

	return tx.Commit()
}

const chunkColumns = "id, text, vendor, device, peripheral, register, address, source_file, embedding"

// Chunk retrieves one chunk by ID.
func (s *Store) Chunk(ctx context.Context, id string) (domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)

	c, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Chunk{}, domain.ErrNotFound
		}
		return domain.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	return c, nil
}

// ChunksBySource returns all chunks from one source file.
func (s *Store) ChunksBySource(ctx context.Context, sourceFile string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE source_file = ? ORDER BY id", sourceFile)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// AllChunks returns every chunk in the catalog, ordered by ID.
func (s *Store) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FileState retrieves the manifest entry for a source file.
func (s *Store) FileState(ctx context.Context, path string) (driven.FileState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT path, vendor, sha256, chunks, indexed_at FROM files WHERE path = ?", path)

	var st driven.FileState
	if err := row.Scan(&st.Path, &st.Vendor, &st.SHA256, &st.Chunks, &st.IndexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return driven.FileState{}, domain.ErrNotFound
		}
		return driven.FileState{}, fmt.Errorf("scanning file state: %w", err)
	}
	return st, nil
}

// DeleteBySource removes the chunks and manifest entry of one source file.
func (s *Store) DeleteBySource(ctx context.Context, sourceFile string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_file = ?", sourceFile); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", sourceFile); err != nil {
		return fmt.Errorf("deleting file state: %w", err)
	}
	return tx.Commit()
}

// Stats returns catalog-wide counts.
func (s *Store) Stats(ctx context.Context) (driven.CatalogStats, error) {
	var stats driven.CatalogStats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(DISTINCT vendor) FROM chunks),
			(SELECT COUNT(DISTINCT device) FROM chunks)
	`)
	if err := row.Scan(&stats.Files, &stats.Chunks, &stats.Vendors, &stats.Devices); err != nil {
		return driven.CatalogStats{}, fmt.Errorf("scanning stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (domain.Chunk, error) {
	var c domain.Chunk
	var address int64
	var embedding []byte

	err := row.Scan(&c.ID, &c.Text, &c.Metadata.Vendor, &c.Metadata.Device,
		&c.Metadata.Peripheral, &c.Metadata.Register, &address,
		&c.Metadata.SourceFile, &embedding)
	if err != nil {
		return domain.Chunk{}, err
	}

	c.Metadata.Address = uint64(address)
	c.Embedding = bytesToFloat32Slice(embedding)
	return c, nil
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
