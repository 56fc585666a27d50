package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/repository"
	"github.com/reqtrace/reqtrace/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	sessions := session.NewManager(t.TempDir(),
		repository.NewMemoryBaselineRepository(),
		repository.NewMemorySnapshotRepository())
	t.Cleanup(sessions.CloseActive)
	server := httptest.NewServer(NewHandler(sessions, t.TempDir()))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, data
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)
	projectID := uuid.New()
	base := server.URL + "/api/projects/" + projectID.String()

	// Requests against an unopened project are rejected.
	resp, _ := doJSON(t, http.MethodGet, base+"/artifacts", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before open, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/open", `{"name":"Avionics"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open failed with %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/artifacts",
		`{"kind":"requirement","id":"REQ-001","title":"Altitude hold","status":"draft","revision":"01","message":"Add REQ-001"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save failed with %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, base+"/artifacts/requirement/REQ-001/history", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history failed with %d", resp.StatusCode)
	}
	var rows []struct {
		Hash     string `json:"hash"`
		Revision string `json:"revision"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}
	if rows[0].Revision != "01" || rows[0].Message != "Add REQ-001" {
		t.Errorf("unexpected history row: %+v", rows[0])
	}

	// Saves commit immediately, so the working tree reports clean.
	resp, body = doJSON(t, http.MethodGet, base+"/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status failed with %d", resp.StatusCode)
	}
	var status struct {
		New      []string `json:"new"`
		Modified []string `json:"modified"`
		Deleted  []string `json:"deleted"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if len(status.New)+len(status.Modified)+len(status.Deleted) != 0 {
		t.Errorf("expected clean tree after save, got %+v", status)
	}
}

func TestBaselineAndExportOverHTTP(t *testing.T) {
	server := newTestServer(t)
	projectID := uuid.New()
	base := server.URL + "/api/projects/" + projectID.String()

	doJSON(t, http.MethodPost, base+"/open", `{"name":"Avionics"}`)
	doJSON(t, http.MethodPost, base+"/artifacts",
		`{"kind":"requirement","id":"REQ-001","title":"Altitude hold","status":"draft","revision":"01","message":"Add REQ-001"}`)

	resp, body := doJSON(t, http.MethodPost, base+"/baselines", `{"name":"B1","description":"first cut"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("baseline creation failed with %d: %s", resp.StatusCode, body)
	}
	var baseline domain.ProjectBaseline
	if err := json.Unmarshal(body, &baseline); err != nil {
		t.Fatalf("failed to decode baseline: %v", err)
	}
	if baseline.Version != 1 || len(baseline.ArtifactCommits) != 1 {
		t.Errorf("unexpected baseline: %+v", baseline)
	}

	// Creating a baseline records a baseline-kind snapshot.
	resp, body = doJSON(t, http.MethodGet, base+"/snapshots", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot list failed with %d", resp.StatusCode)
	}
	var snapshots []domain.VersionSnapshot
	if err := json.Unmarshal(body, &snapshots); err != nil {
		t.Fatalf("failed to decode snapshots: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Kind != domain.SnapshotKindBaseline {
		t.Fatalf("expected one baseline snapshot, got %+v", snapshots)
	}

	// Exporting the baseline includes the pre-baseline commit.
	resp, body = doJSON(t, http.MethodPost, base+"/exports/revision-history",
		fmt.Sprintf(`{"baselineId":%q,"format":"csv"}`, baseline.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("baseline export failed with %d: %s", resp.StatusCode, body)
	}
	var exported map[string]string
	if err := json.Unmarshal(body, &exported); err != nil {
		t.Fatalf("failed to decode export response: %v", err)
	}
	if exported["filePath"] == "" {
		t.Errorf("expected export file path, got %v", exported)
	}

	// Current state has no commits after the baseline: section omitted.
	resp, _ = doJSON(t, http.MethodPost, base+"/exports/revision-history", `{"format":"csv"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for empty window, got %d", resp.StatusCode)
	}
}

func TestRestoreOverHTTP(t *testing.T) {
	server := newTestServer(t)
	projectID := uuid.New()
	base := server.URL + "/api/projects/" + projectID.String()

	doJSON(t, http.MethodPost, base+"/open", `{"name":"Avionics"}`)
	doJSON(t, http.MethodPost, base+"/artifacts",
		`{"kind":"risk","id":"RISK-001","title":"Sensor drift","status":"open","revision":"01"}`)
	_, body := doJSON(t, http.MethodPost, base+"/baselines", `{"name":"B1"}`)
	var baseline domain.ProjectBaseline
	if err := json.Unmarshal(body, &baseline); err != nil {
		t.Fatalf("failed to decode baseline: %v", err)
	}

	resp, _ := doJSON(t, http.MethodPost, base+"/snapshots/"+uuid.NewString()+"/restore", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown snapshot, got %d", resp.StatusCode)
	}

	_, body = doJSON(t, http.MethodGet, base+"/snapshots", "")
	var snapshots []domain.VersionSnapshot
	if err := json.Unmarshal(body, &snapshots); err != nil {
		t.Fatalf("failed to decode snapshots: %v", err)
	}
	if len(snapshots) == 0 {
		t.Fatalf("expected at least one snapshot")
	}

	resp, body = doJSON(t, http.MethodPost, base+"/snapshots/"+snapshots[0].ID.String()+"/restore", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore failed with %d: %s", resp.StatusCode, body)
	}
	var restored domain.VersionSnapshot
	if err := json.Unmarshal(body, &restored); err != nil {
		t.Fatalf("failed to decode restored snapshot: %v", err)
	}
	if restored.Kind != domain.SnapshotKindRestore {
		t.Errorf("expected restore-kind snapshot, got %s", restored.Kind)
	}
}
