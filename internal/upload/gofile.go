package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const gofileEndpoint = "https://upload.gofile.io/uploadfile"

// GofileClient uploads files to gofile.io as a guest. The guest token and
// folder id returned by the first upload are reused for later uploads so the
// files land in one folder.
type GofileClient struct {
	endpoint   string
	hc         *http.Client
	guestToken string
	folderID   string
}

// NewGofileClient builds a client with a long-upload-friendly timeout.
func NewGofileClient() *GofileClient {
	return &GofileClient{
		endpoint: gofileEndpoint,
		hc:       &http.Client{Timeout: 30 * time.Minute},
	}
}

// Name identifies the host in summary messages.
func (g *GofileClient) Name() string { return "Gofile" }

type gofileResponse struct {
	Status     string `json:"status"`
	GuestToken string `json:"guestToken"`
	FolderID   string `json:"folderId"`
	Data       struct {
		GuestToken   string `json:"guestToken"`
		FolderID     string `json:"folderId"`
		DownloadPage string `json:"downloadPage"`
		DownloadURL  string `json:"downloadUrl"`
		DirectLink   string `json:"directLink"`
		FileID       string `json:"fileId"`
	} `json:"data"`
}

// Upload performs a single upload request and returns the download page URL.
func (g *GofileClient) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// Stream the body so large files never sit in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(func() error {
			if g.guestToken != "" {
				if err := mw.WriteField("guestToken", g.guestToken); err != nil {
					return fmt.Errorf("gofile form: %w", err)
				}
			}
			if g.folderID != "" {
				if err := mw.WriteField("folderId", g.folderID); err != nil {
					return fmt.Errorf("gofile form: %w", err)
				}
			}
			part, err := mw.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return fmt.Errorf("gofile form: %w", err)
			}
			if _, err := io.Copy(part, f); err != nil {
				return fmt.Errorf("gofile form: %w", err)
			}
			return mw.Close()
		}())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("gofile request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gofile upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("gofile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gofile upload failed: %s %s", resp.Status, string(raw))
	}

	var parsed gofileResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gofile response: %w", err)
	}
	if parsed.Status != "ok" {
		return "", fmt.Errorf("gofile upload failed: %s", string(raw))
	}

	if token := firstNonEmpty(parsed.Data.GuestToken, parsed.GuestToken); token != "" {
		g.guestToken = token
	}
	if folder := firstNonEmpty(parsed.Data.FolderID, parsed.FolderID); folder != "" {
		g.folderID = folder
	}

	url := firstNonEmpty(parsed.Data.DownloadPage, parsed.Data.DownloadURL, parsed.Data.DirectLink)
	if url == "" && parsed.Data.FileID != "" {
		url = "https://gofile.io/d/" + parsed.Data.FileID
	}
	if url == "" {
		return "", fmt.Errorf("gofile response missing download URL")
	}
	return url, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
