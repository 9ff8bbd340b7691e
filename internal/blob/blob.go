// Package blob stores raw uploaded documents under deterministic per-event
// keys so an annex can always be re-derived from its chain position.
package blob

import (
	"context"
	"fmt"
)

// Storage is the blob-storage collaborator.
type Storage interface {
	Save(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string, targetPath string) error
	Delete(ctx context.Context, key string) error
}

// AnnexKey builds the deterministic key for the n-th annex of an event.
func AnnexKey(caseID string, eventID int64, n int) string {
	return fmt.Sprintf("case/%s/event/%d/annex_%d.pdf", caseID, eventID, n)
}
