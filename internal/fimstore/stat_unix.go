//go:build unix

package fimstore

import (
	"io/fs"
	"strconv"
	"syscall"
)

type fileOwner struct {
	uid, gid uint32
	inode    uint64
	mode     uint32
}

func ownerOf(info fs.FileInfo) (fileOwner, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileOwner{}, false
	}
	return fileOwner{
		uid:   st.Uid,
		gid:   st.Gid,
		inode: uint64(st.Ino),
		mode:  uint32(st.Mode),
	}, true
}

func permString(info fs.FileInfo, owner fileOwner, ok bool) string {
	if ok {
		return strconv.FormatUint(uint64(owner.mode), 8)
	}
	return strconv.FormatUint(uint64(info.Mode().Perm()), 8)
}
