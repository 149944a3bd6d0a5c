package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AnalysisUploadResult is the analysis service's answer to a forwarded upload.
type AnalysisUploadResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// AnalysisStatusResult reports the current parse state of a remote document.
type AnalysisStatusResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ErrorMsg   string `json:"error_msg"`
}

// AnalysisReport is a generated analyst report.
type AnalysisReport struct {
	HTML     string         `json:"html"`
	Metadata map[string]any `json:"metadata"`
}

// AnalysisExport is an exported report file.
type AnalysisExport struct {
	Data        []byte
	ContentType string
}

// AnalysisClient talks to the external document-analysis service. The
// service owns parsing and report generation; this client only proxies
// its documented endpoints.
type AnalysisClient interface {
	Upload(ctx context.Context, fileName, docType string, file io.Reader) (*AnalysisUploadResult, error)
	Status(ctx context.Context, documentID string) (*AnalysisStatusResult, error)
	GenerateReport(ctx context.Context, documentID string) (*AnalysisReport, error)
	ExportReport(ctx context.Context, documentID, format string) (*AnalysisExport, error)
}

type analysisClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewAnalysisClient creates an AnalysisClient for the given base URL.
func NewAnalysisClient(baseURL string, logger zerolog.Logger) AnalysisClient {
	return &analysisClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Report generation over a large filing can take a while, so the
		// timeout is generous. Callers can cancel earlier via ctx.
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger.With().Str("service", "AnalysisClient").Logger(),
	}
}

func (c *analysisClient) Upload(ctx context.Context, fileName, docType string, file io.Reader) (*AnalysisUploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("creating multipart file field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copying file into multipart body: %w", err)
	}
	if err := mw.WriteField("doc_type", docType); err != nil {
		return nil, fmt.Errorf("writing doc_type field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/upload", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result AnalysisUploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *analysisClient) Status(ctx context.Context, documentID string) (*AnalysisStatusResult, error) {
	url := fmt.Sprintf("%s/status/%s", c.baseURL, documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var result AnalysisStatusResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *analysisClient) GenerateReport(ctx context.Context, documentID string) (*AnalysisReport, error) {
	req, err := c.newJSONRequest(ctx, "/generate-report", map[string]string{"document_id": documentID})
	if err != nil {
		return nil, err
	}

	var result AnalysisReport
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *analysisClient) ExportReport(ctx context.Context, documentID, format string) (*AnalysisExport, error) {
	req, err := c.newJSONRequest(ctx, "/export-report", map[string]string{"document_id": documentID, "fmt": format})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to analysis service: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export body: %w", err)
	}
	return &AnalysisExport{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (c *analysisClient) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and decodes a JSON body into out on 200.
func (c *analysisClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request to analysis service: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return c.upstreamError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// upstreamError reads a bounded slice of a non-2xx body for the error message.
func (c *analysisClient) upstreamError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if readErr != nil {
		c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from analysis service")
		return fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	errorMsg := strings.TrimSpace(string(bodyBytes))
	c.logger.Error().
		Int("status_code", resp.StatusCode).
		Str("error_body", errorMsg).
		Msg("Analysis service returned error")

	return fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, errorMsg)
}
