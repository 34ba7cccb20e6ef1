package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
)

// LeaderboardRebuilder recomputes the cached leaderboards from the primary
// store.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context) error
}

// AdminHandler serves operator endpoints guarded by the admin API key.
type AdminHandler struct {
	archiver      domain.Archiver
	blobs         domain.BlobReader
	boards        LeaderboardRebuilder
	audit         domain.AuditStore
	retentionDays int
	logger        *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archiver and blobs may be nil when
// cold storage is not configured.
func NewAdminHandler(
	archiver domain.Archiver,
	blobs domain.BlobReader,
	boards LeaderboardRebuilder,
	audit domain.AuditStore,
	retentionDays int,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		archiver:      archiver,
		blobs:         blobs,
		boards:        boards,
		audit:         audit,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// archiveRequest optionally overrides the retention cutoff.
type archiveRequest struct {
	Before *time.Time `json:"before,omitempty"`
}

// RunArchive copies trades and audit rows older than the cutoff to cold
// storage. The cutoff defaults to now minus the configured retention.
// POST /api/admin/archive
func (h *AdminHandler) RunArchive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "archiver not configured")
		return
	}

	before := time.Now().UTC().AddDate(0, 0, -h.retentionDays)
	var body archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Before != nil {
		before = body.Before.UTC()
	}

	trades, err := h.archiver.ArchiveTrades(r.Context(), before)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: trade archive failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "trade archive failed")
		return
	}

	auditRows, err := h.archiver.ArchiveAuditLog(r.Context(), before)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: audit archive failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "audit archive failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"before":          before.Format(time.RFC3339),
		"trades_archived": trades,
		"audit_archived":  auditRows,
	})
}

// ListArchive lists the objects written to cold storage so an operator can
// verify an archive pass landed.
// GET /api/admin/archive?prefix=archive/trades/
func (h *AdminHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusNotImplemented, "archiver not configured")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	objects, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive list failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if objects == nil {
		objects = []domain.BlobInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"objects": objects,
	})
}

// RebuildLeaderboards recomputes the cached boards from the primary store.
// POST /api/admin/leaderboard/rebuild
func (h *AdminHandler) RebuildLeaderboards(w http.ResponseWriter, r *http.Request) {
	if err := h.boards.Rebuild(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard rebuild failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "leaderboard rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// ListAuditLog returns recent audit entries, newest first.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: audit list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
