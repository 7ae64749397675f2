package upload

import (
	"context"
	"strings"

	"offersbot/core/logger"

	"log/slog"
)

// DefaultThresholdMB is the size gate between the low-size and high-size hosts.
const DefaultThresholdMB = 200.0

// Host is an "upload(file) -> URL or error" black box.
type Host interface {
	Name() string
	Upload(ctx context.Context, path string) (string, error)
}

// Result describes one upload attempt pair. On failure URL carries the
// human-readable failure text embedded into the summary message.
type Result struct {
	Host    string
	URL     string
	Success bool
	Err     string
}

// Uploader routes a file to one of two hosts by size and retries the chosen
// host exactly once before reporting failure.
type Uploader struct {
	thresholdMB float64
	small       Host
	large       Host
}

// NewUploader builds the size-gated router. thresholdMB <= 0 selects the
// default threshold.
func NewUploader(thresholdMB float64, small, large Host) *Uploader {
	if thresholdMB <= 0 {
		thresholdMB = DefaultThresholdMB
	}
	return &Uploader{thresholdMB: thresholdMB, small: small, large: large}
}

// Upload pushes the file to the host selected by sizeBytes. Failures never
// surface as errors; they are folded into the Result.
func (u *Uploader) Upload(ctx context.Context, path string, sizeBytes int64) Result {
	host := u.large
	if float64(sizeBytes)/(1024*1024) <= u.thresholdMB {
		host = u.small
	}
	return uploadWithRetry(ctx, host, path)
}

func uploadWithRetry(ctx context.Context, host Host, path string) Result {
	url, err := host.Upload(ctx, path)
	if err == nil {
		return Result{Host: host.Name(), URL: url, Success: true}
	}
	logger.Warn(ctx, "service.upload", "upload.retry",
		slog.String("host", host.Name()),
		slog.String("err", err.Error()),
	)

	url, err = host.Upload(ctx, path)
	if err == nil {
		return Result{Host: host.Name(), URL: url, Success: true}
	}
	errText := strings.TrimSpace(strings.ReplaceAll(err.Error(), "\n", " "))
	logger.Error(ctx, "service.upload", "upload.fail",
		slog.String("host", host.Name()),
		slog.String("err", errText),
	)
	return Result{
		Host:    host.Name(),
		URL:     "Upload failed: " + errText,
		Success: false,
		Err:     errText,
	}
}
