package render

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubmitAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Agent") != "MediaForge/1.0 render" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/renders":
			var req SubmitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" || req.JobID == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(Job{ID: "r_" + req.JobID, State: StateQueued})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/renders/r_gen1":
			_ = json.NewEncoder(w).Encode(Job{ID: "r_gen1", State: StateDone, OutputURL: "http://" + r.Host + "/files/out.png"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-token", time.Second, "MediaForge/1.0 render")
	job, err := client.Submit(context.Background(), SubmitRequest{JobID: "gen1", Feature: "image-generation", Provider: "flux", Prompt: "a fox"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID != "r_gen1" || job.State != StateQueued {
		t.Fatalf("unexpected job %+v", job)
	}

	job, err = client.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.State != StateDone || !strings.HasSuffix(job.OutputURL, "/files/out.png") {
		t.Fatalf("unexpected status %+v", job)
	}
}

func TestHTTPErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("provider rejected prompt"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "t", time.Second, "")
	_, err := client.Submit(context.Background(), SubmitRequest{JobID: "x", Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status=422") || !strings.Contains(err.Error(), "provider rejected prompt") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "t", 50*time.Millisecond, "")
	_, err := client.Status(context.Background(), "job")
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNetworkErrorIsClassified(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "t", time.Second, "")
	_, err := client.Status(context.Background(), "job")
	if err == nil || !strings.Contains(err.Error(), "network error") {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestUnconfigured(t *testing.T) {
	client := NewClient("", "", 0, "")
	if _, err := client.Submit(context.Background(), SubmitRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/out.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "t", time.Second, "")
	asset, err := client.Download(context.Background(), server.URL+"/files/out.mp4")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer asset.Body.Close()
	data, _ := io.ReadAll(asset.Body)
	if string(data) != "mp4-bytes" || asset.ContentType != "video/mp4" {
		t.Fatalf("unexpected asset %q %q", data, asset.ContentType)
	}

	if _, err := client.Download(context.Background(), server.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}
