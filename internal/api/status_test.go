package api_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestGetPoolStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/v1/pool", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		PoolSize    int `json:"pool_size"`
		QueueLength int `json:"queue_length"`
		Busy        int `json:"busy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PoolSize != 2 {
		t.Errorf("PoolSize = %d, want 2", resp.PoolSize)
	}
	if resp.QueueLength != 0 || resp.Busy != 0 {
		t.Errorf("idle pool reports queue %d busy %d, want 0/0", resp.QueueLength, resp.Busy)
	}
}

func TestListCapabilities(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/v1/capabilities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var infos []struct {
		Format string `json:"format"`
		Name   string `json:"name"`
		Marker string `json:"marker"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("len(infos) = %d, want 1", len(infos))
	}
	if infos[0].Format != "mermaid" || infos[0].Name != "fake" || infos[0].Marker != "<svg" {
		t.Errorf("capability = %+v, want registered fake mermaid capability", infos[0])
	}
}

func TestGetStats(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/v1/tasks",
		`{"id":"s1","format":"mermaid","input":"graph TD; A-->B"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", rec.Code)
	}
	pollUntilTerminal(t, srv, "s1")

	rec = doRequest(srv, http.MethodGet, "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
		ByFormat map[string]int `json:"by_format"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Total = %d, want 1", resp.Total)
	}
	if resp.ByStatus["done"] != 1 {
		t.Errorf("ByStatus = %v, want one done task", resp.ByStatus)
	}
	if resp.ByFormat["mermaid"] != 1 {
		t.Errorf("ByFormat = %v, want one mermaid task", resp.ByFormat)
	}
}
