package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFixture(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestScanFile(t *testing.T) {
	path := writeFixture(t, strings.Join([]string{
		"user1:pass1",
		"no delimiter here",
		"user2:pass2 [NOT_SAVED]",
		"user3:pass3",
		"",
	}, "\n"))

	m, err := ScanFile(path)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if m.Filename != "sample.txt" {
		t.Errorf("Filename = %q", m.Filename)
	}
	if m.TotalLines != 4 {
		t.Errorf("TotalLines = %d, want 4", m.TotalLines)
	}
	if m.ValidULP != 2 {
		t.Errorf("ValidULP = %d, want 2", m.ValidULP)
	}
	if m.SizeBytes == 0 {
		t.Error("SizeBytes = 0")
	}
}

func TestScanFileHandlesVeryLongLines(t *testing.T) {
	long := strings.Repeat("x", 5*1024*1024)
	path := writeFixture(t, "user1:pass1\n"+long+":tail\nplain\n")

	m, err := ScanFile(path)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if m.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", m.TotalLines)
	}
	if m.ValidULP != 2 {
		t.Errorf("ValidULP = %d, want 2", m.ValidULP)
	}
}

func TestScanFileMissing(t *testing.T) {
	if _, err := ScanFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// stubHost counts calls and fails a configurable number of times.
type stubHost struct {
	name     string
	failures int
	calls    int
}

func (h *stubHost) Name() string { return h.name }

func (h *stubHost) Upload(ctx context.Context, path string) (string, error) {
	h.calls++
	if h.calls <= h.failures {
		return "", errors.New("host unavailable")
	}
	return "https://" + strings.ToLower(h.name) + ".example/f1", nil
}

func TestThresholdRouting(t *testing.T) {
	const mb = 1024 * 1024
	cases := []struct {
		name      string
		sizeBytes int64
		wantHost  string
	}{
		{"small file routes low", 10 * mb, "Catbox"},
		{"exactly at threshold routes low", 200 * mb, "Catbox"},
		{"large file routes high", 250 * mb, "Gofile"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			small := &stubHost{name: "Catbox"}
			large := &stubHost{name: "Gofile"}
			u := NewUploader(200, small, large)

			res := u.Upload(context.Background(), "f", tc.sizeBytes)
			if res.Host != tc.wantHost {
				t.Fatalf("routed to %s, want %s", res.Host, tc.wantHost)
			}
			if !res.Success {
				t.Fatalf("unexpected failure: %+v", res)
			}
		})
	}
}

func TestUploadRetriesExactlyOnce(t *testing.T) {
	small := &stubHost{name: "Catbox", failures: 1}
	u := NewUploader(200, small, &stubHost{name: "Gofile"})

	res := u.Upload(context.Background(), "f", 1024)
	if !res.Success {
		t.Fatalf("second attempt should succeed: %+v", res)
	}
	if small.calls != 2 {
		t.Fatalf("calls = %d, want 2", small.calls)
	}
}

func TestUploadFailureEmbedsErrorText(t *testing.T) {
	small := &stubHost{name: "Catbox", failures: 2}
	u := NewUploader(200, small, &stubHost{name: "Gofile"})

	res := u.Upload(context.Background(), "f", 1024)
	if res.Success {
		t.Fatal("expected failure after two attempts")
	}
	if small.calls != 2 {
		t.Fatalf("calls = %d, want exactly 2", small.calls)
	}
	if !strings.HasPrefix(res.URL, "Upload failed: ") {
		t.Fatalf("URL = %q, wanted embedded failure text", res.URL)
	}
}

func TestResolveHeader(t *testing.T) {
	m := FileMetrics{TotalLines: 1234567}
	if got := ResolveHeader("Fresh  drop\nhere", "", m); got != "Fresh  drop here" {
		t.Errorf("custom header = %q", got)
	}
	if got := ResolveHeader("", "2,000,000", m); got != "Total lines on this are 2,000,000, but here is 1,234,567" {
		t.Errorf("display count header = %q", got)
	}
	if got := ResolveHeader("", "", m); got != "New Sample!" {
		t.Errorf("default header = %q", got)
	}
}

func TestBuildMessageLayout(t *testing.T) {
	m := FileMetrics{
		Filename:   "sample.txt",
		TotalLines: 1500,
		ValidULP:   1200,
		SizeBytes:  5 * 1024 * 1024,
	}
	r := Result{Host: "Catbox", URL: "https://files.catbox.moe/abc", Success: true}
	now := time.Date(2026, 8, 29, 13, 45, 7, 0, time.UTC)

	got := BuildMessage("New Sample!", m, r, now)
	want := strings.Join([]string{
		"New Sample!",
		"File: sample.txt",
		"Valid ULP: 1,200",
		"Valid Lines: 1,500",
		"Size: 5.00 MB",
		"Catbox: https://files.catbox.moe/abc",
		"Success: 1/1",
		"Time: 2026-08-29 13:45:07",
	}, "\n")
	if got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestBuildMessageFailureFlag(t *testing.T) {
	m := FileMetrics{Filename: "f.txt"}
	r := Result{Host: "Gofile", URL: "Upload failed: boom", Success: false}
	got := BuildMessage("New Sample!", m, r, time.Now())
	if !strings.Contains(got, "Success: 0/1") {
		t.Fatalf("missing failure flag: %q", got)
	}
	if !strings.Contains(got, "Gofile: Upload failed: boom") {
		t.Fatalf("missing embedded failure line: %q", got)
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for in, want := range cases {
		if got := groupThousands(in); got != want {
			t.Errorf("groupThousands(%d) = %q, want %q", in, got, want)
		}
	}
}
