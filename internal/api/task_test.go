package api_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sctg/renderpool/internal/api"
	"github.com/sctg/renderpool/internal/model"
)

// pollUntilTerminal polls GET /v1/tasks/{id} until the task settles, the way
// an out-of-process controller would.
func pollUntilTerminal(t *testing.T, srv *api.Server, id string) model.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doRequest(srv, http.MethodGet, "/v1/tasks/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET task status = %d, want 200", rec.Code)
		}
		var task model.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		if model.Terminal(task.Status) {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never settled")
	return model.Task{}
}

func TestSubmitAndPollTask(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/v1/tasks",
		`{"format":"mermaid","input":"graph TD; A-->B"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var created model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("response has no generated id")
	}
	if created.Status != model.StatusPending {
		t.Errorf("initial status = %q, want pending", created.Status)
	}

	settled := pollUntilTerminal(t, srv, created.ID)
	if settled.Status != model.StatusDone {
		t.Fatalf("settled status = %q, want done (error: %s)", settled.Status, settled.Error)
	}
	if settled.Result == "" {
		t.Error("settled task has empty result")
	}
	if settled.DurationMS == nil {
		t.Error("settled task has no duration")
	}
	if settled.Renderer == nil {
		t.Error("settled task has no renderer slot recorded")
	}
}

func TestSubmitTaskFailureIsPollable(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/v1/tasks",
		`{"id":"will-fail","format":"mermaid","input":"bad diagram"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	settled := pollUntilTerminal(t, srv, "will-fail")
	if settled.Status != model.StatusError {
		t.Fatalf("settled status = %q, want error", settled.Status)
	}
	if settled.Error == "" {
		t.Error("failed task has no error message")
	}
}

func TestSubmitTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing input", `{"format":"mermaid"}`},
		{"unknown format", `{"format":"pdf","input":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/v1/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSubmitDuplicateTaskID(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"id":"dup","format":"mermaid","input":"graph TD; A-->B"}`
	if rec := doRequest(srv, http.MethodPost, "/v1/tasks", body); rec.Code != http.StatusAccepted {
		t.Fatalf("first submit status = %d, want 202", rec.Code)
	}

	rec := doRequest(srv, http.MethodPost, "/v1/tasks", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate submit status = %d, want 409", rec.Code)
	}
}

func TestGetUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/v1/tasks/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListTasks(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, id := range []string{"t1", "t2", "t3"} {
		rec := doRequest(srv, http.MethodPost, "/v1/tasks",
			`{"id":"`+id+`","format":"mermaid","input":"graph TD; A-->B"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submit %s status = %d, want 202", id, rec.Code)
		}
		pollUntilTerminal(t, srv, id)
	}

	rec := doRequest(srv, http.MethodGet, "/v1/tasks?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Tasks  []*model.Task `json:"tasks"`
		Total  int           `json:"total"`
		Limit  int           `json:"limit"`
		Offset int           `json:"offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, want 3", resp.Total)
	}
	if len(resp.Tasks) != 2 {
		t.Errorf("len(Tasks) = %d, want 2 (limit applied)", len(resp.Tasks))
	}
	if resp.Limit != 2 || resp.Offset != 0 {
		t.Errorf("pagination echo = limit %d offset %d, want 2/0", resp.Limit, resp.Offset)
	}
}

func TestListTasksEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/v1/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(resp["tasks"]) != "[]" {
		t.Errorf("tasks = %s, want empty JSON array, not null", resp["tasks"])
	}
}
