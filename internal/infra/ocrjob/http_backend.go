package ocrjob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// HTTPBackend talks to the remote OCR space.
// Endpoints used:
//   - POST /upload                 multipart field "files", returns the stored path
//   - POST /jobs/start_from_path   {"path", "language"} returns {"job_id"}
//   - GET  /jobs/{job_id}          {"status", "stage", "progress", "result", "error"}
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPBackend creates a backend with a 60s per-request timeout. The overall
// job deadline is enforced by Client through the request context.
func NewHTTPBackend(baseURL string, httpClient *http.Client) *HTTPBackend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// ─── wire types ──────────────────────────────────────────────────────────────

type uploadedFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type startRequest struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status   string          `json:"status"`
	Stage    string          `json:"stage"`
	Progress float64         `json:"progress"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error"`
}

// ─── Backend implementation ─────────────────────────────────────────────────

// Upload posts the image as multipart field "files".
func (b *HTTPBackend) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("upload: empty image")
	}
	if filename == "" {
		filename = "upload.jpg"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}

	raw, err := b.do(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	ref, err := parseUploadRef(raw)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return ref, nil
}

// Start launches OCR for an uploaded path.
func (b *HTTPBackend) Start(ctx context.Context, ref, language string) (string, error) {
	payload, err := json.Marshal(startRequest{Path: ref, Language: language})
	if err != nil {
		return "", err
	}
	raw, err := b.do(ctx, http.MethodPost, "/jobs/start_from_path", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	var resp startResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("start: decode response: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("start: response has no job_id")
	}
	return resp.JobID, nil
}

// Status reads one job snapshot.
func (b *HTTPBackend) Status(ctx context.Context, jobID string) (Snapshot, error) {
	raw, err := b.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), "", nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("status: %w", err)
	}
	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Snapshot{}, fmt.Errorf("status: decode response: %w", err)
	}

	snap := Snapshot{
		State:    ParseRemoteState(resp.Status),
		Stage:    resp.Stage,
		Progress: resp.Progress,
		Error:    resp.Error,
	}
	if snap.State == StateSucceeded {
		snap.Text = resultText(resp.Result)
	}
	if snap.State == StateFailed && snap.Error == "" {
		snap.Error = "job " + strings.ToLower(resp.Status)
	}
	return snap, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (b *HTTPBackend) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(raw), 300))
	}
	return raw, nil
}

// parseUploadRef accepts ["path"], [{"path": ...}] and {"path": ...}.
func parseUploadRef(raw []byte) (string, error) {
	var paths []string
	if err := json.Unmarshal(raw, &paths); err == nil && len(paths) > 0 && paths[0] != "" {
		return paths[0], nil
	}
	var files []uploadedFile
	if err := json.Unmarshal(raw, &files); err == nil && len(files) > 0 && files[0].Path != "" {
		return files[0].Path, nil
	}
	var file uploadedFile
	if err := json.Unmarshal(raw, &file); err == nil && file.Path != "" {
		return file.Path, nil
	}
	return "", fmt.Errorf("unrecognised upload response: %s", truncate(string(raw), 200))
}

// resultText accepts a plain string, {"text": ...} or any other JSON (returned verbatim).
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != "" {
		return obj.Text
	}
	return string(raw)
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
