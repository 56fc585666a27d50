package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/export"
	"github.com/reqtrace/reqtrace/internal/labelloader"
	"github.com/reqtrace/reqtrace/internal/repository"
	"github.com/reqtrace/reqtrace/internal/session"
)

// Handler exposes the versioning engine over REST for the revision-history
// UI and the document exporters.
type Handler struct {
	sessions  *session.Manager
	exportDir string
}

// NewHandler builds the project API handler.
func NewHandler(sessions *session.Manager, exportDir string) http.Handler {
	return &Handler{sessions: sessions, exportDir: exportDir}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Paths look like /api/projects/{id}/<resource>...
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	if rest == r.URL.Path || rest == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	projectID, err := uuid.Parse(segments[0])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid project id: %v", err), http.StatusBadRequest)
		return
	}
	segments = segments[1:]
	if len(segments) == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodPost && matches(segments, "open"):
		h.handleOpen(w, r, projectID)
	case r.Method == http.MethodPost && matches(segments, "close"):
		h.handleClose(w, projectID)
	case r.Method == http.MethodGet && matches(segments, "status"):
		h.handleStatus(w, r, projectID)
	case r.Method == http.MethodGet && matches(segments, "artifacts"):
		h.handleListArtifacts(w, r, projectID)
	case r.Method == http.MethodPost && matches(segments, "artifacts"):
		h.handleSaveArtifact(w, r, projectID)
	case r.Method == http.MethodDelete && len(segments) == 3 && segments[0] == "artifacts":
		h.handleRemoveArtifact(w, r, projectID, segments[1], segments[2])
	case r.Method == http.MethodGet && len(segments) == 4 && segments[0] == "artifacts" && segments[3] == "history":
		h.handleHistory(w, r, projectID, segments[1], segments[2])
	case r.Method == http.MethodPost && matches(segments, "baselines"):
		h.handleCreateBaseline(w, r, projectID)
	case r.Method == http.MethodGet && matches(segments, "baselines"):
		h.handleListBaselines(w, r, projectID)
	case r.Method == http.MethodGet && matches(segments, "snapshots"):
		h.handleListSnapshots(w, r, projectID)
	case r.Method == http.MethodPost && len(segments) == 3 && segments[0] == "snapshots" && segments[2] == "restore":
		h.handleRestore(w, r, projectID, segments[1])
	case r.Method == http.MethodPost && len(segments) == 2 && segments[0] == "exports" && segments[1] == "revision-history":
		h.handleExport(w, r, projectID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func matches(segments []string, name string) bool {
	return len(segments) == 1 && segments[0] == name
}

type openPayload struct {
	Name string `json:"name"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	defer r.Body.Close()
	var payload openPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	sess, err := h.sessions.OpenProject(r.Context(), projectID, payload.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projectId":   sess.ProjectID,
		"projectName": sess.ProjectName,
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, projectID uuid.UUID) {
	if _, err := h.sessions.Active(projectID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.sessions.CloseActive()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	status, err := sess.Store().Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleListArtifacts(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, sess.Collections())
}

type saveArtifactPayload struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Revision    string `json:"revision"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (h *Handler) handleSaveArtifact(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer r.Body.Close()
	var payload saveArtifactPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	kind, err := domain.ParseArtifactKind(payload.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		http.Error(w, "artifact id is required", http.StatusBadRequest)
		return
	}
	message := payload.Message
	if message == "" {
		message = fmt.Sprintf("Update %s", payload.ID)
	}
	artifact := domain.Artifact{
		ID:          payload.ID,
		Title:       payload.Title,
		Status:      payload.Status,
		Revision:    payload.Revision,
		Description: payload.Description,
	}
	if err := sess.SaveArtifact(r.Context(), kind, artifact, message); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (h *Handler) handleRemoveArtifact(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, kindRaw, artifactID string) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	kind, err := domain.ParseArtifactKind(kindRaw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.RemoveArtifact(r.Context(), kind, artifactID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyRow struct {
	Hash        string `json:"hash"`
	Message     string `json:"message"`
	Author      string `json:"author"`
	TimestampMs int64  `json:"timestampMs"`
	Revision    string `json:"revision"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, kindRaw, artifactID string) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	kind, err := domain.ParseArtifactKind(kindRaw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var sinceMs *int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		value, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			http.Error(w, fmt.Sprintf("invalid since parameter: %v", parseErr), http.StatusBadRequest)
			return
		}
		sinceMs = &value
	}

	commits, err := sess.Window().CommitsSince(r.Context(), kind, artifactID, sinceMs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	loader := labelloader.NewLabelLoader(sess.Labels())
	filePath := kind.FilePath(artifactID)
	keys := make([]labelloader.Key, len(commits))
	for i, commit := range commits {
		keys[i] = labelloader.Key{Kind: kind, FilePath: filePath, Hash: commit.Hash}
	}
	labels := loader.Labels(r.Context(), keys)

	rows := make([]historyRow, len(commits))
	for i, commit := range commits {
		rows[i] = historyRow{
			Hash:        commit.Hash,
			Message:     commit.Message,
			Author:      commit.Author,
			TimestampMs: commit.TimestampMs,
			Revision:    labels[i],
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

type createBaselinePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateBaseline(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer r.Body.Close()
	var payload createBaselinePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "baseline name is required", http.StatusBadRequest)
		return
	}
	baseline, err := sess.CreateBaseline(r.Context(), payload.Name, payload.Description)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, baseline)
}

func (h *Handler) handleListBaselines(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	baselines, err := sess.Baselines().ListBaselines(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, baselines)
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	snapshots, err := sess.Snapshots().ListSnapshots(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, versionRaw string) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	versionID, err := uuid.Parse(versionRaw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version id: %v", err), http.StatusBadRequest)
		return
	}
	restored, err := sess.Snapshots().RestoreVersion(r.Context(), versionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

type exportPayload struct {
	BaselineID *string `json:"baselineId"`
	Format     string  `json:"format"`
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) {
	sess, err := h.sessions.Active(projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer r.Body.Close()
	var payload exportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	var target *uuid.UUID
	if payload.BaselineID != nil {
		id, parseErr := uuid.Parse(*payload.BaselineID)
		if parseErr != nil {
			http.Error(w, fmt.Sprintf("invalid baselineId: %v", parseErr), http.StatusBadRequest)
			return
		}
		target = &id
	}
	format := export.Format(payload.Format)
	if format == "" {
		format = export.FormatXLSX
	}

	service := export.NewService(sess.ProjectName, sess.Baselines(), sess.Window(), sess.Labels(), sess,
		export.WithExportDirectory(h.exportDir))
	path, err := service.ExportRevisionHistory(r.Context(), target, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if path == "" {
		// Empty revision window: the section is omitted and no file exists.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filePath": path})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
