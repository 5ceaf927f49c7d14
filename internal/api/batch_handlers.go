package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
	"github.com/JakeFAU/cardimg-scraper/internal/metrics"
	"github.com/JakeFAU/cardimg-scraper/internal/store"
)

// batchDTO is the status-query response shape. It differs from the
// persisted record: the document is exposed as "progress" and the
// expiration is internal bookkeeping, not part of the answer.
type batchDTO struct {
	ID       string                 `json:"batchId"`
	Progress batch.ProgressDocument `json:"progress"`
}

func toBatchDTO(b batch.Batch) batchDTO {
	return batchDTO{ID: b.ID, Progress: b.Progress}
}

// maxBodyBytes bounds the CSV upload size. A batch of a few thousand
// rows fits comfortably inside 8 MiB.
const maxBodyBytes = 8 << 20

// submitBatch handles POST /v1/batches. The request body is the raw CSV
// text. It returns 202 with {"batchId": ...} when every row is accepted,
// 400 with the validation report when any row is rejected, and 500 with
// a redacted message if creating the batch fails downstream.
func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Error("read batch body failed", zap.Error(err))
		metrics.ObserveBatch("error")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	batchID, report, err := s.ingester.Ingest(r.Context(), string(body))
	if err != nil {
		// Details stay in the logs; clients get a generic message.
		s.logger.Error("batch ingestion failed", zap.Error(err))
		metrics.ObserveBatch("error")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !report.Empty() {
		metrics.ObserveBatch("rejected")
		writeJSON(w, http.StatusBadRequest, report)
		return
	}

	metrics.ObserveBatch("accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"batchId": batchID})
}

// getBatch handles GET /v1/batches/{batch_id}. Unknown and expired
// batches both answer 404.
func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	if batchID == "" {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}

	b, err := s.progress.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		s.logger.Error("get batch failed", zap.String("batch_id", batchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}
