package integrity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
)

// RangeSummary describes the ordered keys a digest was computed over
type RangeSummary struct {
	Begin    string `json:"begin"`
	End      string `json:"end"`
	Count    int    `json:"count"`
	Checksum string `json:"checksum"`
}

// rangeDigest hashes the checksums of keys in the given order.
// The caller holds the store lock.
func rangeDigest(store EntryStore, keys []string) (string, error) {
	h := sha1.New()
	for _, key := range keys {
		entry, ok := store.Get(key)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrEntryVanished, key)
		}
		if _, err := io.WriteString(h, entry.Checksum); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GlobalDigest summarizes every key of the store. An empty store yields a
// zero summary.
func GlobalDigest(store EntryStore) (RangeSummary, error) {
	store.Lock()
	defer store.Unlock()

	keys := store.Keys()
	if len(keys) == 0 {
		return RangeSummary{}, nil
	}

	checksum, err := rangeDigest(store, keys)
	if err != nil {
		return RangeSummary{}, err
	}

	return RangeSummary{
		Begin:    keys[0],
		End:      keys[len(keys)-1],
		Count:    len(keys),
		Checksum: checksum,
	}, nil
}
