package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const catboxEndpoint = "https://catbox.moe/user/api.php"

// CatboxClient uploads files to catbox.moe. An optional userhash attaches
// uploads to an account instead of an anonymous guest.
type CatboxClient struct {
	endpoint string
	userhash string
	hc       *http.Client
}

// NewCatboxClient builds a client with a long-upload-friendly timeout.
func NewCatboxClient(userhash string) *CatboxClient {
	return &CatboxClient{
		endpoint: catboxEndpoint,
		userhash: userhash,
		hc:       &http.Client{Timeout: 10 * time.Minute},
	}
}

// Name identifies the host in summary messages.
func (c *CatboxClient) Name() string { return "Catbox" }

// Upload performs a single fileupload request and returns the public URL.
func (c *CatboxClient) Upload(ctx context.Context, path string) (string, error) {
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
			if err := mw.WriteField("reqtype", "fileupload"); err != nil {
				return fmt.Errorf("catbox form: %w", err)
			}
			if c.userhash != "" {
				if err := mw.WriteField("userhash", c.userhash); err != nil {
					return fmt.Errorf("catbox form: %w", err)
				}
			}
			part, err := mw.CreateFormFile("fileToUpload", filepath.Base(path))
			if err != nil {
				return fmt.Errorf("catbox form: %w", err)
			}
			if _, err := io.Copy(part, f); err != nil {
				return fmt.Errorf("catbox form: %w", err)
			}
			return mw.Close()
		}())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("catbox request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("catbox upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("catbox response: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catbox upload failed: %s %s", resp.Status, text)
	}
	if !strings.HasPrefix(text, "http") {
		return "", fmt.Errorf("catbox upload failed: %s", text)
	}
	return text, nil
}
