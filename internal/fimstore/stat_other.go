//go:build !unix

package fimstore

import (
	"io/fs"
	"strconv"
)

type fileOwner struct {
	uid, gid uint32
	inode    uint64
	mode     uint32
}

func ownerOf(info fs.FileInfo) (fileOwner, bool) {
	return fileOwner{}, false
}

func permString(info fs.FileInfo, owner fileOwner, ok bool) string {
	return strconv.FormatUint(uint64(info.Mode().Perm()), 8)
}
