package fimstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(path, checksum string) *Entry {
	return &Entry{Path: path, Type: EntryTypeFile, Checksum: checksum}
}

func TestStore_KeysAreOrdered(t *testing.T) {
	s := NewStore()
	for _, p := range []string{"/etc/passwd", "/bin/ls", "/etc/hosts", "/usr/bin/env"} {
		s.Put(entry(p, "x"))
	}

	s.Lock()
	defer s.Unlock()
	assert.Equal(t, []string{"/bin/ls", "/etc/hosts", "/etc/passwd", "/usr/bin/env"}, s.Keys())
}

func TestStore_Range(t *testing.T) {
	s := NewStore()
	for _, p := range []string{"a", "b", "c", "d", "f"} {
		s.Put(entry(p, p))
	}

	tests := []struct {
		name       string
		begin, end string
		want       []string
	}{
		{"inclusive-both-ends", "a", "d", []string{"a", "b", "c", "d"}},
		{"single", "c", "c", []string{"c"}},
		{"bounds-not-present", "bb", "e", []string{"c", "d"}},
		{"past-end", "g", "z", nil},
		{"before-start", "0", "1", nil},
		{"whole", "", "zzz", []string{"a", "b", "c", "d", "f"}},
		{"inverted", "d", "a", nil},
	}

	s.Lock()
	defer s.Unlock()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Range(tt.begin, tt.end))
		})
	}
}

func TestStore_PutReportsChecksumChange(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Put(entry("a", "1")))
	assert.False(t, s.Put(entry("a", "1")))
	assert.True(t, s.Put(entry("a", "2")))
	assert.Equal(t, 1, s.Len())

	e, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "2", e.Checksum)
}

func TestStore_PutCopiesEntry(t *testing.T) {
	s := NewStore()
	e := entry("a", "1")
	s.Put(e)
	e.Checksum = "mutated"

	got, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "1", got.Checksum)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	s.Put(entry("a", "1"))
	s.Put(entry("b", "2"))

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, []string{"b"}, s.Paths())

	s.Lock()
	_, ok := s.Get("a")
	s.Unlock()
	assert.False(t, ok)
}

func TestStore_Load(t *testing.T) {
	s := NewStore()
	s.Put(entry("old", "0"))
	s.Load([]*Entry{entry("c", "3"), entry("a", "1"), entry("b", "2")})

	assert.Equal(t, []string{"a", "b", "c"}, s.Paths())
}

func TestEntry_ComputeChecksum(t *testing.T) {
	e := &Entry{
		Path:       "/etc/hosts",
		Size:       12,
		Perm:       "100644",
		UID:        "0",
		GID:        "0",
		UserName:   "root",
		GroupName:  "root",
		MTime:      1700000000,
		Inode:      42,
		HashMD5:    "md5",
		HashSHA1:   "sha1",
		HashSHA256: "sha256",
	}
	sum := e.ComputeChecksum()
	assert.Len(t, sum, 40)
	assert.Equal(t, sum, e.ComputeChecksum())

	e.Size = 13
	assert.NotEqual(t, sum, e.ComputeChecksum())

	// the path is the key, not part of the checksum
	moved := e.Clone()
	moved.Path = "/etc/hosts.bak"
	assert.Equal(t, e.ComputeChecksum(), moved.ComputeChecksum())
}
