package fimstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j := NewJournal(filepath.Join(t.TempDir(), "fim.db"))
	require.NoError(t, j.Open())
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_SetGetDelete(t *testing.T) {
	j := openJournal(t)

	e := &Entry{
		Path:       "/etc/hosts",
		Type:       EntryTypeFile,
		Size:       10,
		Perm:       "100644",
		UID:        "0",
		GID:        "0",
		UserName:   "root",
		GroupName:  "root",
		Inode:      1234,
		MTime:      1700000000,
		HashMD5:    "m",
		HashSHA1:   "s1",
		HashSHA256: "s256",
		LastEvent:  1700000001,
	}
	e.Checksum = e.ComputeChecksum()
	require.NoError(t, j.Set(e))

	got, err := j.Get("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	missing, err := j.Get("/nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, j.Delete("/etc/hosts"))
	count, err := j.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestJournal_LoadIsOrdered(t *testing.T) {
	j := openJournal(t)
	for _, p := range []string{"/c", "/a", "/b"} {
		require.NoError(t, j.Set(&Entry{Path: p, Type: EntryTypeFile, Checksum: p}))
	}

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/a", entries[0].Path)
	assert.Equal(t, "/b", entries[1].Path)
	assert.Equal(t, "/c", entries[2].Path)
}

func TestJournal_ExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fim.db")
	first := NewJournal(path)
	require.NoError(t, first.Open())
	defer first.Close()

	second := NewJournal(path)
	assert.ErrorIs(t, second.Open(), ErrJournalLocked)
}

func TestJournal_DoubleOpenClose(t *testing.T) {
	j := openJournal(t)
	assert.ErrorIs(t, j.Open(), ErrJournalOpen)

	require.NoError(t, j.Close())
	assert.ErrorIs(t, j.Close(), ErrJournalNotOpen)
	require.NoError(t, j.Open())
}
