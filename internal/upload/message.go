package upload

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultHeader opens summary messages when no custom header or display count
// is provided.
const defaultHeader = "New Sample!"

// ResolveHeader picks the summary header line. A custom header wins; a
// display count produces the comparison line; otherwise the default is used.
func ResolveHeader(custom, displayCount string, m FileMetrics) string {
	if custom != "" {
		return strings.TrimSpace(strings.ReplaceAll(custom, "\n", " "))
	}
	if displayCount != "" {
		return fmt.Sprintf("Total lines on this are %s, but here is %s",
			strings.TrimSpace(displayCount), groupThousands(m.TotalLines))
	}
	return defaultHeader
}

// BuildMessage renders the channel summary. The field order and labels are
// fixed; consumers scan the channel by eye and rely on the layout.
func BuildMessage(header string, m FileMetrics, r Result, now time.Time) string {
	success := "1/1"
	if !r.Success {
		success = "0/1"
	}
	return strings.Join([]string{
		header,
		"File: " + m.Filename,
		"Valid ULP: " + groupThousands(m.ValidULP),
		"Valid Lines: " + groupThousands(m.TotalLines),
		fmt.Sprintf("Size: %.2f MB", m.SizeMB()),
		r.Host + ": " + r.URL,
		"Success: " + success,
		"Time: " + now.Format("2006-01-02 15:04:05"),
	}, "\n")
}

// groupThousands renders n with comma separators, e.g. 1234567 -> "1,234,567".
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
