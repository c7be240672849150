package memesearch

import (
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino/schema"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
)

const (
	indexFile     = "index.gob"
	docstoreFile  = "docstore.db"
	formatVersion = 1
)

// VectorSpace describes the embedding provider an index is loaded for.
type VectorSpace interface {
	Dimension() int
	ModelInfo() string
}

// Exists reports whether dir contains a saved index.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, indexFile))
	return err == nil && !info.IsDir()
}

// Save writes the index into dir as two parts: the vector structure
// (index.gob) and the document store (docstore.db). Both are written into a
// sibling temp directory which then replaces dir, so a reader never sees
// one part from an older build. A crash between the two renames leaves no
// index at dir and the caller rebuilds.
func (ix *Index) Save(dir string) error {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	if err := os.Chmod(tmp, 0755); err != nil {
		return err
	}

	if err := ix.saveDocstore(filepath.Join(tmp, docstoreFile)); err != nil {
		return err
	}
	if err := ix.saveVectors(filepath.Join(tmp, indexFile)); err != nil {
		return err
	}
	return replaceDir(tmp, dir)
}

func (ix *Index) saveVectors(path string) error {
	p := persistedIndex{
		Version:   formatVersion,
		Dimension: ix.dim,
		ModelInfo: ix.modelInfo,
		IDs:       make([]string, len(ix.docs)),
		Vectors:   ix.vectors,
	}
	for i, doc := range ix.docs {
		p.IDs[i] = doc.ID
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(p); err != nil {
		file.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	return file.Close()
}

// replaceDir moves tmp into place at dir, keeping the previous dir until
// the new one is in place.
func replaceDir(tmp, dir string) error {
	old := dir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("remove stale index: %w", err)
	}
	if err := os.Rename(dir, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move previous index: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		_ = os.Rename(old, dir)
		return fmt.Errorf("install index: %w", err)
	}
	return os.RemoveAll(old)
}

// sqliteDSN builds a file: URI for path. The path is escaped so that '?'
// and '#' in directory names are not read as URI delimiters.
func sqliteDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=" + mode}
	return u.String(), nil
}

func (ix *Index) saveDocstore(path string) error {
	dsn, err := sqliteDSN(path, "rwc")
	if err != nil {
		return fmt.Errorf("open docstore: %w", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open docstore: %w", err)
	}

	if err := writeDocuments(db, ix.docs); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close docstore: %w", err)
	}
	return nil
}

func writeDocuments(db *sql.DB, docs []*schema.Document) error {
	_, err := db.Exec(`
	CREATE TABLE documents (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		image_path TEXT NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("create docstore schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO documents (position, id, content, image_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		if _, err := stmt.Exec(i, doc.ID, doc.Content, ImagePath(doc)); err != nil {
			return fmt.Errorf("inserting document %q: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads an index saved by Save. The caller presents the embedding
// provider it will query with; an index of a different dimensionality, or
// one that cannot be decoded, yields ErrCorruptIndex. A different model
// name with matching dimensionality is only logged.
func Load(dir string, space VectorSpace, log logrus.FieldLogger) (*Index, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	file, err := os.Open(filepath.Join(dir, indexFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	defer file.Close()

	var p persistedIndex
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptIndex, indexFile, err)
	}

	if p.Version != formatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrCorruptIndex, p.Version, formatVersion)
	}
	if p.Dimension != space.Dimension() {
		return nil, fmt.Errorf("%w: index dimension %d does not match provider dimension %d", ErrCorruptIndex, p.Dimension, space.Dimension())
	}
	if len(p.IDs) != len(p.Vectors) {
		return nil, fmt.Errorf("%w: %d ids for %d vectors", ErrCorruptIndex, len(p.IDs), len(p.Vectors))
	}
	for i, v := range p.Vectors {
		if len(v) != p.Dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrCorruptIndex, i, len(v), p.Dimension)
		}
	}
	if p.ModelInfo != space.ModelInfo() {
		log.WithFields(logrus.Fields{
			"index_model":    p.ModelInfo,
			"provider_model": space.ModelInfo(),
		}).Warn("index was built with a different embedding model")
	}

	docs, err := readDocuments(filepath.Join(dir, docstoreFile))
	if err != nil {
		return nil, err
	}
	if len(docs) != len(p.IDs) {
		return nil, fmt.Errorf("%w: docstore has %d documents, index has %d vectors", ErrCorruptIndex, len(docs), len(p.IDs))
	}
	for i, doc := range docs {
		if doc.ID != p.IDs[i] {
			return nil, fmt.Errorf("%w: document %d is %q in docstore, %q in index", ErrCorruptIndex, i, doc.ID, p.IDs[i])
		}
		doc.MetaData[MetaEmbedding] = p.Vectors[i]
	}

	return &Index{
		dim:       p.Dimension,
		modelInfo: p.ModelInfo,
		docs:      docs,
		vectors:   p.Vectors,
	}, nil
}

func readDocuments(path string) ([]*schema.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	dsn, err := sqliteDSN(path, "ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open docstore: %v", ErrCorruptIndex, err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open docstore: %v", ErrCorruptIndex, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, content, image_path FROM documents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query docstore: %v", ErrCorruptIndex, err)
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var id, content, imagePath string
		if err := rows.Scan(&id, &content, &imagePath); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrCorruptIndex, err)
		}
		docs = append(docs, NewDocument(id, content, imagePath, nil))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return docs, nil
}
