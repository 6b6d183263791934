package agent

import (
	"context"
	"fmt"

	"github.com/openmined/fimsync/internal/config"
	"github.com/openmined/fimsync/internal/fimstore"
	"github.com/openmined/fimsync/internal/integrity"
)

// ScanOnce runs a single full scan into the journal
func ScanOnce(ctx context.Context, cfg *config.Config) (*fimstore.ScanResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filter, err := fimstore.NewPathFilter(cfg.Ignore, cfg.Restrict)
	if err != nil {
		return nil, fmt.Errorf("path filter: %w", err)
	}

	journal := fimstore.NewJournal(cfg.StorePath)
	if err := journal.Open(); err != nil {
		return nil, err
	}
	defer journal.Close()

	store := fimstore.NewStore()
	if err := loadStore(journal, store); err != nil {
		return nil, err
	}

	scanner := fimstore.NewScanner(store, cfg.Directories,
		fimstore.WithJournal(journal),
		fimstore.WithFilter(filter),
	)
	return scanner.Scan(ctx)
}

// JournalDigest computes the global digest the agent would announce for
// the journal contents
func JournalDigest(storePath string) (integrity.RangeSummary, error) {
	journal := fimstore.NewJournal(storePath)
	if err := journal.Open(); err != nil {
		return integrity.RangeSummary{}, err
	}
	defer journal.Close()

	store := fimstore.NewStore()
	if err := loadStore(journal, store); err != nil {
		return integrity.RangeSummary{}, err
	}
	return integrity.GlobalDigest(store)
}
