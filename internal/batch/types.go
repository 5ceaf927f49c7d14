// Package batch defines core types shared across subsystems.
package batch

import "time"

// CardPageURIColumn is the CSV header cell every submitted batch must carry.
const CardPageURIColumn = "Card Page URI"

// ItemStatus is the lifecycle state of one item within a batch.
type ItemStatus string

// Item statuses persisted in the progress document.
const (
	StatusPending ItemStatus = "PENDING"
	StatusSuccess ItemStatus = "SUCCESS"
	StatusFailure ItemStatus = "FAILURE"
)

// RowMap is one accepted CSV row, keyed by header cell.
type RowMap map[string]string

// PageURI returns the card page URI cell of the row.
func (r RowMap) PageURI() string {
	return r[CardPageURIColumn]
}

// ProgressDocument maps item keys (submitted page URIs) to their status.
type ProgressDocument map[string]ItemStatus

// Clone returns a copy safe to hand out across goroutines.
func (d ProgressDocument) Clone() ProgressDocument {
	out := make(ProgressDocument, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Batch is the persisted record for one submitted batch.
type Batch struct {
	ID        string           `json:"batchId"`
	Progress  ProgressDocument `json:"progressDocument"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// WorkItem is the queue message produced per accepted row.
type WorkItem struct {
	BatchID string `json:"batchId"`
	Item    RowMap `json:"itemFromBatch"`
}
