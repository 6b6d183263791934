package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// FileHashes holds the hex digests of a file's contents
type FileHashes struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// HashFile reads the file once and returns its md5, sha1 and sha256
func HashFile(path string) (FileHashes, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHashes{}, err
	}
	defer f.Close()

	hmd5, hsha1, hsha256 := md5.New(), sha1.New(), sha256.New()
	if _, err := io.Copy(io.MultiWriter(hmd5, hsha1, hsha256), f); err != nil {
		return FileHashes{}, err
	}

	return FileHashes{
		MD5:    hex.EncodeToString(hmd5.Sum(nil)),
		SHA1:   hex.EncodeToString(hsha1.Sum(nil)),
		SHA256: hex.EncodeToString(hsha256.Sum(nil)),
	}, nil
}
