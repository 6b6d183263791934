package fimstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/openmined/fimsync/internal/utils"
)

// Change describes what a scan did to one path
type Change int

const (
	ChangeNone Change = iota
	ChangeAdded
	ChangeModified
	ChangeDeleted
	ChangeSkipped
)

func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "unchanged"
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	case ChangeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("???(%d)", int(c))
	}
}

// ScanResult counts the changes of one full scan
type ScanResult struct {
	Added     int
	Modified  int
	Deleted   int
	Unchanged int
	Skipped   int
	Bytes     int64
	Duration  time.Duration
}

func (r *ScanResult) record(c Change) {
	scanChanges.WithLabelValues(c.String()).Inc()
	switch c {
	case ChangeAdded:
		r.Added++
	case ChangeModified:
		r.Modified++
	case ChangeDeleted:
		r.Deleted++
	case ChangeSkipped:
		r.Skipped++
	default:
		r.Unchanged++
	}
}

// HasChanges reports whether the scan touched the store
func (r *ScanResult) HasChanges() bool {
	return r.Added+r.Modified+r.Deleted > 0
}

// Scanner walks the monitored directories and keeps the store and journal
// in step with the filesystem.
type Scanner struct {
	store   *Store
	journal *Journal
	dirs    []string
	filter  *PathFilter
	clock   clockwork.Clock

	mu     sync.Mutex // serializes full scans and single path rescans
	names  *lru.Cache[string, string]
	groups *lru.Cache[string, string]
}

const ownerCacheSize = 256

type ScannerOption func(*Scanner)

// WithJournal persists every change to journal
func WithJournal(journal *Journal) ScannerOption {
	return func(s *Scanner) {
		s.journal = journal
	}
}

// WithFilter sets the path filter
func WithFilter(filter *PathFilter) ScannerOption {
	return func(s *Scanner) {
		s.filter = filter
	}
}

// WithScanClock sets the clock used to stamp entries
func WithScanClock(clock clockwork.Clock) ScannerOption {
	return func(s *Scanner) {
		s.clock = clock
	}
}

func NewScanner(store *Store, dirs []string, opts ...ScannerOption) *Scanner {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		cleaned = append(cleaned, filepath.Clean(d))
	}
	s := &Scanner{
		store: store,
		dirs:  cleaned,
		clock: clockwork.NewRealClock(),
	}
	s.names, _ = lru.New[string, string](ownerCacheSize)
	s.groups, _ = lru.New[string, string](ownerCacheSize)
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		s.filter, _ = NewPathFilter(nil, nil)
	}
	return s
}

// Scan walks every monitored directory once
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	result := &ScanResult{}
	seen := mapset.NewThreadUnsafeSet[string]()

	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				// a vanished or unreadable subtree must not abort the whole scan
				slog.Warn("scan walk", "path", path, "error", walkErr)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != dir && !s.filter.Allowed(path+"/") {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !s.filter.Allowed(path) {
				return nil
			}

			seen.Add(path)
			change, size, err := s.scanFileLocked(path)
			if err != nil {
				slog.Warn("scan file", "path", path, "error", err)
				change = ChangeSkipped
			}
			result.Bytes += size
			result.record(change)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}

	for _, path := range s.store.Paths() {
		if seen.Contains(path) || !s.monitored(path) {
			continue
		}
		if err := s.deleteLocked(path); err != nil {
			return nil, err
		}
		result.record(ChangeDeleted)
	}

	result.Duration = s.clock.Since(start)
	scanDuration.Observe(result.Duration.Seconds())
	slog.Info("scan complete",
		"added", result.Added,
		"modified", result.Modified,
		"deleted", result.Deleted,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"hashed", humanize.Bytes(uint64(result.Bytes)),
		"took", result.Duration,
	)
	return result, nil
}

// ScanPath rescans a single path, removing its entry if the file is gone
func (s *Scanner) ScanPath(path string) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path = filepath.Clean(path)
	if !s.monitored(path) || !s.filter.Allowed(path) {
		return ChangeSkipped, nil
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if _, ok := s.store.Lookup(path); !ok {
			return ChangeNone, nil
		}
		if err := s.deleteLocked(path); err != nil {
			return ChangeNone, err
		}
		return ChangeDeleted, nil
	}
	if err != nil {
		return ChangeSkipped, err
	}
	if !info.Mode().IsRegular() {
		return ChangeSkipped, nil
	}

	change, _, err := s.scanFileLocked(path)
	if err == nil {
		scanChanges.WithLabelValues(change.String()).Inc()
	}
	return change, err
}

// monitored reports whether path lives under one of the scanned directories
func (s *Scanner) monitored(path string) bool {
	for _, dir := range s.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Scanner) scanFileLocked(path string) (Change, int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return ChangeSkipped, 0, err
	}

	owner, hasOwner := ownerOf(info)
	e := &Entry{
		Path:  path,
		Type:  EntryTypeFile,
		Size:  info.Size(),
		Perm:  permString(info, owner, hasOwner),
		MTime: info.ModTime().Unix(),
	}
	if hasOwner {
		e.UID = strconv.FormatUint(uint64(owner.uid), 10)
		e.GID = strconv.FormatUint(uint64(owner.gid), 10)
		e.Inode = owner.inode
		e.UserName = s.userName(e.UID)
		e.GroupName = s.groupName(e.GID)
	}

	prev, exists := s.store.Lookup(path)

	var hashed int64
	if exists && prev.Size == e.Size && prev.MTime == e.MTime && prev.Inode == e.Inode {
		e.HashMD5, e.HashSHA1, e.HashSHA256 = prev.HashMD5, prev.HashSHA1, prev.HashSHA256
	} else {
		h, err := utils.HashFile(path)
		if err != nil {
			return ChangeSkipped, 0, err
		}
		e.HashMD5, e.HashSHA1, e.HashSHA256 = h.MD5, h.SHA1, h.SHA256
		hashed = e.Size
	}
	e.Checksum = e.ComputeChecksum()

	if exists && prev.Checksum == e.Checksum {
		return ChangeNone, hashed, nil
	}

	e.LastEvent = s.clock.Now().Unix()
	s.store.Put(e)
	if s.journal != nil {
		if err := s.journal.Set(e); err != nil {
			return ChangeSkipped, hashed, err
		}
	}

	if exists {
		slog.Debug("entry modified", "path", path, "checksum", e.Checksum)
		return ChangeModified, hashed, nil
	}
	slog.Debug("entry added", "path", path, "checksum", e.Checksum)
	return ChangeAdded, hashed, nil
}

func (s *Scanner) deleteLocked(path string) error {
	s.store.Delete(path)
	if s.journal != nil {
		if err := s.journal.Delete(path); err != nil {
			return err
		}
	}
	slog.Debug("entry deleted", "path", path)
	return nil
}

func (s *Scanner) userName(uid string) string {
	if name, ok := s.names.Get(uid); ok {
		return name
	}
	name := ""
	if u, err := user.LookupId(uid); err == nil {
		name = u.Username
	}
	s.names.Add(uid, name)
	return name
}

func (s *Scanner) groupName(gid string) string {
	if name, ok := s.groups.Get(gid); ok {
		return name
	}
	name := ""
	if g, err := user.LookupGroupId(gid); err == nil {
		name = g.Name
	}
	s.groups.Add(gid, name)
	return name
}
