package fimstore

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

const (
	EntryTypeFile = "file"
)

// Entry is the monitored state of one file
type Entry struct {
	Path       string
	Type       string
	Size       int64
	Perm       string
	UID        string
	GID        string
	UserName   string
	GroupName  string
	Inode      uint64
	MTime      int64
	HashMD5    string
	HashSHA1   string
	HashSHA256 string
	// Checksum is the hex SHA-1 of the attribute string, see ComputeChecksum
	Checksum string
	// LastEvent is the unix time of the scan that last changed the entry
	LastEvent int64
}

// ComputeChecksum returns the hex SHA-1 over the entry attributes in the
// order size:perm:uid:gid:user:group:mtime:inode:md5:sha1:sha256
func (e *Entry) ComputeChecksum() string {
	attrs := fmt.Sprintf("%d:%s:%s:%s:%s:%s:%d:%d:%s:%s:%s",
		e.Size, e.Perm, e.UID, e.GID, e.UserName, e.GroupName,
		e.MTime, e.Inode, e.HashMD5, e.HashSHA1, e.HashSHA256,
	)
	sum := sha1.Sum([]byte(attrs))
	return hex.EncodeToString(sum[:])
}

// Clone returns a copy of the entry
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}
