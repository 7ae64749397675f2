package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func fixtureFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.txt")
	if err := os.WriteFile(path, []byte("user:pass\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCatboxUpload(t *testing.T) {
	var gotReqType, gotUserhash string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength >= 0 {
			t.Errorf("body was buffered: Content-Length = %d, want streamed", r.ContentLength)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotReqType = r.FormValue("reqtype")
		gotUserhash = r.FormValue("userhash")
		if _, _, err := r.FormFile("fileToUpload"); err != nil {
			t.Fatalf("file part: %v", err)
		}
		_, _ = w.Write([]byte("https://files.catbox.moe/abc.txt"))
	}))
	defer srv.Close()

	c := &CatboxClient{endpoint: srv.URL, userhash: "hash123", hc: srv.Client()}
	url, err := c.Upload(context.Background(), fixtureFile(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://files.catbox.moe/abc.txt" {
		t.Fatalf("url = %q", url)
	}
	if gotReqType != "fileupload" || gotUserhash != "hash123" {
		t.Fatalf("form fields = %q, %q", gotReqType, gotUserhash)
	}
}

func TestCatboxUploadNonURLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("something went wrong"))
	}))
	defer srv.Close()

	c := &CatboxClient{endpoint: srv.URL, hc: srv.Client()}
	if _, err := c.Upload(context.Background(), fixtureFile(t)); err == nil {
		t.Fatal("expected error for non-URL response body")
	}
}

func TestGofileUploadReusesGuestToken(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength >= 0 {
			t.Errorf("body was buffered: Content-Length = %d, want streamed", r.ContentLength)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		tokens = append(tokens, r.FormValue("guestToken"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data": map[string]any{
				"guestToken":   "tok1",
				"folderId":     "folder1",
				"downloadPage": "https://gofile.io/d/xyz",
			},
		})
	}))
	defer srv.Close()

	g := &GofileClient{endpoint: srv.URL, hc: srv.Client()}
	path := fixtureFile(t)

	url, err := g.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	if url != "https://gofile.io/d/xyz" {
		t.Fatalf("url = %q", url)
	}
	if _, err := g.Upload(context.Background(), path); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "" || tokens[1] != "tok1" {
		t.Fatalf("guest tokens = %v, want [\"\" \"tok1\"]", tokens)
	}
}

func TestGofileUploadFallbackFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"fileId": "abc123"},
		})
	}))
	defer srv.Close()

	g := &GofileClient{endpoint: srv.URL, hc: srv.Client()}
	url, err := g.Upload(context.Background(), fixtureFile(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://gofile.io/d/abc123" {
		t.Fatalf("url = %q", url)
	}
}

func TestGofileUploadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error"})
	}))
	defer srv.Close()

	g := &GofileClient{endpoint: srv.URL, hc: srv.Client()}
	if _, err := g.Upload(context.Background(), fixtureFile(t)); err == nil {
		t.Fatal("expected error for non-ok status")
	}
}
