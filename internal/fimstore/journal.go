package fimstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/fimsync/internal/db"
	"github.com/openmined/fimsync/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS fim_entry (
    path TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    size INTEGER NOT NULL,
    perm TEXT NOT NULL,
    uid TEXT NOT NULL,
    gid TEXT NOT NULL,
    user_name TEXT NOT NULL,
    group_name TEXT NOT NULL,
    inode INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    hash_md5 TEXT NOT NULL,
    hash_sha1 TEXT NOT NULL,
    hash_sha256 TEXT NOT NULL,
    checksum TEXT NOT NULL,
    last_event INTEGER NOT NULL
);
`

const entryColumns = `path, type, size, perm, uid, gid, user_name, group_name, inode, mtime,
	hash_md5, hash_sha1, hash_sha256, checksum, last_event`

var (
	ErrJournalLocked  = errors.New("journal locked by another process")
	ErrJournalOpen    = errors.New("journal already open")
	ErrJournalNotOpen = errors.New("journal not open")
)

type dbEntry struct {
	Path       string `db:"path"`
	Type       string `db:"type"`
	Size       int64  `db:"size"`
	Perm       string `db:"perm"`
	UID        string `db:"uid"`
	GID        string `db:"gid"`
	UserName   string `db:"user_name"`
	GroupName  string `db:"group_name"`
	Inode      int64  `db:"inode"`
	MTime      int64  `db:"mtime"`
	HashMD5    string `db:"hash_md5"`
	HashSHA1   string `db:"hash_sha1"`
	HashSHA256 string `db:"hash_sha256"`
	Checksum   string `db:"checksum"`
	LastEvent  int64  `db:"last_event"`
}

func (d *dbEntry) toEntry() *Entry {
	return &Entry{
		Path:       d.Path,
		Type:       d.Type,
		Size:       d.Size,
		Perm:       d.Perm,
		UID:        d.UID,
		GID:        d.GID,
		UserName:   d.UserName,
		GroupName:  d.GroupName,
		Inode:      uint64(d.Inode),
		MTime:      d.MTime,
		HashMD5:    d.HashMD5,
		HashSHA1:   d.HashSHA1,
		HashSHA256: d.HashSHA256,
		Checksum:   d.Checksum,
		LastEvent:  d.LastEvent,
	}
}

func fromEntry(e *Entry) dbEntry {
	return dbEntry{
		Path:       e.Path,
		Type:       e.Type,
		Size:       e.Size,
		Perm:       e.Perm,
		UID:        e.UID,
		GID:        e.GID,
		UserName:   e.UserName,
		GroupName:  e.GroupName,
		Inode:      int64(e.Inode),
		MTime:      e.MTime,
		HashMD5:    e.HashMD5,
		HashSHA1:   e.HashSHA1,
		HashSHA256: e.HashSHA256,
		Checksum:   e.Checksum,
		LastEvent:  e.LastEvent,
	}
}

// Journal persists the entry store in SQLite so a restarted agent does not
// need to rehash every monitored file before its first digest round.
type Journal struct {
	db     *sqlx.DB
	dbPath string
	flock  *flock.Flock
}

func NewJournal(dbPath string) *Journal {
	return &Journal{
		dbPath: dbPath,
		flock:  flock.New(dbPath + ".lock"),
	}
}

// Open locks the journal file and opens the database
func (j *Journal) Open() error {
	if j.db != nil {
		return ErrJournalOpen
	}

	if err := utils.EnsureParent(j.dbPath); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	locked, err := j.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	if !locked {
		return ErrJournalLocked
	}

	database, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1), db.WithSchema(schema))
	if err != nil {
		j.flock.Unlock()
		return fmt.Errorf("failed to open journal: %w", err)
	}

	j.db = database
	slog.Debug("journal open", "path", j.dbPath)
	return nil
}

// Close closes the database and releases the file lock
func (j *Journal) Close() error {
	if j.db == nil {
		return ErrJournalNotOpen
	}
	err := j.db.Close()
	j.db = nil
	if uerr := j.flock.Unlock(); uerr != nil {
		slog.Warn("journal unlock", "error", uerr)
	}
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	slog.Debug("journal closed")
	return nil
}

// Get returns the entry for path, or nil if the journal has none
func (j *Journal) Get(path string) (*Entry, error) {
	var row dbEntry
	err := j.db.Get(&row, "SELECT "+entryColumns+" FROM fim_entry WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query path %s: %w", path, err)
	}
	return row.toEntry(), nil
}

// Set inserts or replaces an entry
func (j *Journal) Set(e *Entry) error {
	if e == nil {
		return fmt.Errorf("cannot set nil entry")
	}

	query := `INSERT OR REPLACE INTO fim_entry (` + entryColumns + `)
	          VALUES (:path, :type, :size, :perm, :uid, :gid, :user_name, :group_name, :inode, :mtime,
	          :hash_md5, :hash_sha1, :hash_sha256, :checksum, :last_event)`
	if _, err := j.db.NamedExec(query, fromEntry(e)); err != nil {
		return fmt.Errorf("failed to set entry %s: %w", e.Path, err)
	}
	return nil
}

// Delete removes the entry for path
func (j *Journal) Delete(path string) error {
	if _, err := j.db.Exec("DELETE FROM fim_entry WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete path %s: %w", path, err)
	}
	return nil
}

// Load returns every entry ordered by path
func (j *Journal) Load() ([]*Entry, error) {
	var rows []dbEntry
	if err := j.db.Select(&rows, "SELECT "+entryColumns+" FROM fim_entry ORDER BY path"); err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	entries := make([]*Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntry())
	}
	return entries, nil
}

// Count returns the number of journaled entries
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM fim_entry"); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
