package media

import (
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/mediagate/internal/resolver"
)

const (
	defaultContentType = "application/octet-stream"
	proxyPathMarker    = "/media/file/"
)

// Record is a CMS media document.
type Record struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Alt       string    `json:"alt"`
	Filesize  int64     `json:"filesize"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectURL returns the stored URL when it can be fetched as is: absolute
// http(s) and not pointing back at this proxy.
func (r Record) DirectURL() (string, bool) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" || strings.Contains(raw, proxyPathMarker) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return raw, true
}

// ContentType returns the record's MIME type or a binary default.
func (r Record) ContentType() string {
	if strings.TrimSpace(r.MimeType) == "" {
		return defaultContentType
	}
	return r.MimeType
}

// Download is an open upstream body ready to stream. The caller must close Body.
type Download struct {
	Record        Record
	Body          io.ReadCloser
	ContentLength int64
}

// PreloadResult reports one filename processed by a preload run.
type PreloadResult struct {
	Filename string `json:"filename"`
	Resolved bool   `json:"resolved"`
	Error    string `json:"error,omitempty"`
}

// DebugReport explains how a filename resolves.
type DebugReport struct {
	Record       *Record              `json:"record"`
	TotalObjects int                  `json:"total_objects"`
	Candidates   []resolver.Candidate `json:"candidates"`
	Match        string               `json:"match,omitempty"`
}
