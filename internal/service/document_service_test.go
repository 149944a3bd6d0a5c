package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"doclens/internal/apperror"
	"doclens/internal/config"
	"doclens/internal/model"

	"github.com/rs/zerolog"
)

// mockDocumentRepo is an in-memory DocumentRepository.
type mockDocumentRepo struct {
	docs      map[string]*model.Document
	nextID    int
	createErr error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{docs: make(map[string]*model.Document)}
}

func (m *mockDocumentRepo) Create(ctx context.Context, d *model.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	d.ID = fmt.Sprintf("doc-%d", m.nextID)
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	copied := *d
	m.docs[d.ID] = &copied
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	if d, ok := m.docs[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (m *mockDocumentRepo) ListByUserID(ctx context.Context, userID string) ([]model.Document, error) {
	var out []model.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]model.Document, error) {
	var out []model.Document
	for _, d := range m.docs {
		if d.Status == status && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) SetArchived(ctx context.Context, id, storagePath string) error {
	if d, ok := m.docs[id]; ok {
		d.StoragePath = storagePath
	}
	return nil
}

func (m *mockDocumentRepo) SetForwarded(ctx context.Context, id, remoteID, status string) error {
	if d, ok := m.docs[id]; ok {
		d.RemoteID = remoteID
		d.Status = status
	}
	return nil
}

func (m *mockDocumentRepo) SetStatus(ctx context.Context, id, status string, errorMsg *string) error {
	if d, ok := m.docs[id]; ok {
		d.Status = status
		d.ErrorMsg = errorMsg
	}
	return nil
}

// mockAnalysisClient returns canned analysis service responses.
type mockAnalysisClient struct {
	uploadResult *AnalysisUploadResult
	uploadErr    error
	uploadCalls  int
	statusResult *AnalysisStatusResult
	statusErr    error
	report       *AnalysisReport
	reportErr    error
	export       *AnalysisExport
	exportErr    error
}

func (m *mockAnalysisClient) Upload(ctx context.Context, fileName, docType string, file io.Reader) (*AnalysisUploadResult, error) {
	m.uploadCalls++
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return m.uploadResult, nil
}

func (m *mockAnalysisClient) Status(ctx context.Context, documentID string) (*AnalysisStatusResult, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.statusResult, nil
}

func (m *mockAnalysisClient) GenerateReport(ctx context.Context, documentID string) (*AnalysisReport, error) {
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return m.report, nil
}

func (m *mockAnalysisClient) ExportReport(ctx context.Context, documentID, format string) (*AnalysisExport, error) {
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return m.export, nil
}

// mockArchiveStore records puts and optionally fails them.
type mockArchiveStore struct {
	keys   []string
	putErr error
}

func (m *mockArchiveStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.keys = append(m.keys, key)
	return nil
}

func documentConfig() *config.Config {
	return &config.Config{MaxUploadMB: 50}
}

func TestUploadHappyPath(t *testing.T) {
	repo := newMockDocumentRepo()
	analysis := &mockAnalysisClient{uploadResult: &AnalysisUploadResult{DocumentID: "remote-1", Status: "parsing"}}
	archive := &mockArchiveStore{}
	svc := NewDocumentService(documentConfig(), repo, analysis, archive, zerolog.Nop())

	doc, err := svc.Upload(context.Background(), "user-1", "report.pdf", "10-K", 1024, strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if doc.RemoteID != "remote-1" {
		t.Fatalf("remote id = %q, want remote-1", doc.RemoteID)
	}
	if doc.Status != model.DocumentStatusParsing {
		t.Fatalf("status = %q, want parsing", doc.Status)
	}
	if doc.DocType != "10-K" {
		t.Fatalf("doc type = %q, want 10-K", doc.DocType)
	}
	if len(archive.keys) != 1 || !strings.HasSuffix(archive.keys[0], "/original.pdf") {
		t.Fatalf("archive keys = %v, want one original.pdf key", archive.keys)
	}
	if doc.StoragePath == "" {
		t.Fatal("storage path should record the archive key")
	}
}

func TestUploadDefaultsDocType(t *testing.T) {
	repo := newMockDocumentRepo()
	analysis := &mockAnalysisClient{uploadResult: &AnalysisUploadResult{DocumentID: "remote-1", Status: "parsing"}}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	doc, err := svc.Upload(context.Background(), "user-1", "notes.txt", "", 10, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if doc.DocType != DefaultDocType {
		t.Fatalf("doc type = %q, want %q", doc.DocType, DefaultDocType)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := NewDocumentService(documentConfig(), newMockDocumentRepo(), &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "user-1", "empty.pdf", "", 0, strings.NewReader(""))
	if err == nil {
		t.Fatal("expected error for empty file")
	}
	if apperror.From(err).StatusCode != 400 {
		t.Fatalf("status = %d, want 400", apperror.From(err).StatusCode)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	analysis := &mockAnalysisClient{}
	svc := NewDocumentService(documentConfig(), newMockDocumentRepo(), analysis, nil, zerolog.Nop())

	for _, name := range []string{"image.png", "archive.zip", "noextension"} {
		_, err := svc.Upload(context.Background(), "user-1", name, "", 10, strings.NewReader("x"))
		if err == nil {
			t.Fatalf("expected error for %q", name)
		}
		if apperror.From(err).StatusCode != 415 {
			t.Fatalf("status for %q = %d, want 415", name, apperror.From(err).StatusCode)
		}
	}
	// Extension checks happen before anything crosses the wire.
	if analysis.uploadCalls != 0 {
		t.Fatalf("analysis calls = %d, want 0", analysis.uploadCalls)
	}
}

func TestUploadAcceptsCaseInsensitiveExtension(t *testing.T) {
	analysis := &mockAnalysisClient{uploadResult: &AnalysisUploadResult{DocumentID: "remote-1", Status: "parsing"}}
	svc := NewDocumentService(documentConfig(), newMockDocumentRepo(), analysis, nil, zerolog.Nop())

	if _, err := svc.Upload(context.Background(), "user-1", "REPORT.PDF", "", 10, strings.NewReader("x")); err != nil {
		t.Fatalf("Upload returned error for uppercase extension: %v", err)
	}
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	svc := NewDocumentService(documentConfig(), newMockDocumentRepo(), &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "user-1", "big.pdf", "", (50<<20)+1, strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error for oversize file")
	}
	if apperror.From(err).StatusCode != 413 {
		t.Fatalf("status = %d, want 413", apperror.From(err).StatusCode)
	}
}

func TestUploadArchiveFailureIsBestEffort(t *testing.T) {
	repo := newMockDocumentRepo()
	analysis := &mockAnalysisClient{uploadResult: &AnalysisUploadResult{DocumentID: "remote-1", Status: "parsing"}}
	archive := &mockArchiveStore{putErr: errors.New("bucket gone")}
	svc := NewDocumentService(documentConfig(), repo, analysis, archive, zerolog.Nop())

	doc, err := svc.Upload(context.Background(), "user-1", "report.pdf", "", 10, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload should survive an archive failure, got: %v", err)
	}
	if doc.StoragePath != "" {
		t.Fatalf("storage path = %q, want empty after archive failure", doc.StoragePath)
	}
	if doc.RemoteID != "remote-1" {
		t.Fatal("upload must still forward to the analysis service")
	}
}

func TestUploadForwardFailureMarksError(t *testing.T) {
	repo := newMockDocumentRepo()
	analysis := &mockAnalysisClient{uploadErr: errors.New("service down")}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "user-1", "report.pdf", "", 10, strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error when the forward fails")
	}
	if apperror.From(err).StatusCode != 500 {
		t.Fatalf("status = %d, want 500", apperror.From(err).StatusCode)
	}

	// The local row survives in error state for later inspection.
	var found *model.Document
	for _, d := range repo.docs {
		found = d
	}
	if found == nil || found.Status != model.DocumentStatusError {
		t.Fatalf("doc = %+v, want status error", found)
	}
	if found.ErrorMsg == nil || *found.ErrorMsg == "" {
		t.Fatal("error_msg should record the failure")
	}
}

func TestGetHidesForeignDocuments(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "owner", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusReady}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewDocumentService(documentConfig(), repo, &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.Get(context.Background(), "intruder", doc.ID)
	if err == nil {
		t.Fatal("expected error for foreign document")
	}
	if apperror.From(err).StatusCode != 404 {
		t.Fatalf("status = %d, want 404 (not 403) so existence is not leaked", apperror.From(err).StatusCode)
	}
}

func TestGetUnknownDocument(t *testing.T) {
	svc := NewDocumentService(documentConfig(), newMockDocumentRepo(), &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.Get(context.Background(), "user-1", "missing")
	if apperror.From(err).StatusCode != 404 {
		t.Fatalf("status = %d, want 404", apperror.From(err).StatusCode)
	}
}

func TestRefreshStatusPersistsTransition(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusUploading}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.docs[doc.ID].RemoteID = "remote-1"
	repo.docs[doc.ID].Status = model.DocumentStatusParsing

	analysis := &mockAnalysisClient{statusResult: &AnalysisStatusResult{DocumentID: "remote-1", Status: model.DocumentStatusReady}}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	got, err := svc.RefreshStatus(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("RefreshStatus returned error: %v", err)
	}
	if got.Status != model.DocumentStatusReady {
		t.Fatalf("status = %q, want ready", got.Status)
	}
	if repo.docs[doc.ID].Status != model.DocumentStatusReady {
		t.Fatal("transition was not persisted")
	}
}

func TestRefreshStatusBeforeForward(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusUploading}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	analysis := &mockAnalysisClient{statusErr: errors.New("should not be called")}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	got, err := svc.RefreshStatus(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("RefreshStatus returned error: %v", err)
	}
	if got.Status != model.DocumentStatusUploading {
		t.Fatalf("status = %q, want unchanged uploading", got.Status)
	}
}

func TestGenerateReportRequiresReady(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusParsing}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewDocumentService(documentConfig(), repo, &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.GenerateReport(context.Background(), "user-1", doc.ID)
	if err == nil {
		t.Fatal("expected error for document still parsing")
	}
	if apperror.From(err).StatusCode != 409 {
		t.Fatalf("status = %d, want 409", apperror.From(err).StatusCode)
	}
}

func TestGenerateReport(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusReady}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.docs[doc.ID].RemoteID = "remote-1"

	analysis := &mockAnalysisClient{report: &AnalysisReport{HTML: "<h1>Report</h1>", Metadata: map[string]any{"pages": 12}}}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	report, err := svc.GenerateReport(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("GenerateReport returned error: %v", err)
	}
	if report.HTML != "<h1>Report</h1>" {
		t.Fatalf("html = %q", report.HTML)
	}
}

func TestExportReportRequiresReady(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusError}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewDocumentService(documentConfig(), repo, &mockAnalysisClient{}, nil, zerolog.Nop())

	_, err := svc.ExportReport(context.Background(), "user-1", doc.ID, "pdf")
	if apperror.From(err).StatusCode != 409 {
		t.Fatalf("status = %d, want 409", apperror.From(err).StatusCode)
	}
}

func TestRefreshParsingSweep(t *testing.T) {
	repo := newMockDocumentRepo()
	parsing := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusUploading}
	if err := repo.Create(context.Background(), parsing); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.docs[parsing.ID].RemoteID = "remote-1"
	repo.docs[parsing.ID].Status = model.DocumentStatusParsing

	ready := &model.Document{UserID: "user-1", FileName: "b.pdf", DocType: "Other", Status: model.DocumentStatusUploading}
	if err := repo.Create(context.Background(), ready); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.docs[ready.ID].RemoteID = "remote-2"
	repo.docs[ready.ID].Status = model.DocumentStatusReady

	analysis := &mockAnalysisClient{statusResult: &AnalysisStatusResult{Status: model.DocumentStatusReady}}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	svc.RefreshParsing(context.Background())

	if repo.docs[parsing.ID].Status != model.DocumentStatusReady {
		t.Fatalf("parsing doc status = %q, want ready", repo.docs[parsing.ID].Status)
	}
	if repo.docs[ready.ID].Status != model.DocumentStatusReady {
		t.Fatal("ready doc should be untouched")
	}
}

func TestRefreshParsingSkipsFailures(t *testing.T) {
	repo := newMockDocumentRepo()
	doc := &model.Document{UserID: "user-1", FileName: "a.pdf", DocType: "Other", Status: model.DocumentStatusUploading}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.docs[doc.ID].RemoteID = "remote-1"
	repo.docs[doc.ID].Status = model.DocumentStatusParsing

	analysis := &mockAnalysisClient{statusErr: errors.New("service down")}
	svc := NewDocumentService(documentConfig(), repo, analysis, nil, zerolog.Nop())

	// Must not panic or wedge; the document stays parsing for the next tick.
	svc.RefreshParsing(context.Background())

	if repo.docs[doc.ID].Status != model.DocumentStatusParsing {
		t.Fatalf("status = %q, want still parsing", repo.docs[doc.ID].Status)
	}
}
