package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"doclens/internal/apperror"
	"doclens/internal/config"
	"doclens/internal/model"
	"doclens/internal/repository"

	"github.com/rs/zerolog"
)

// DefaultDocType labels uploads whose form carries no doc_type.
const DefaultDocType = "Other"

// refreshBatchSize caps how many parsing documents one refresher tick touches.
const refreshBatchSize = 50

// allowedExtensions mirrors what the analysis service accepts; anything
// else is rejected here before the file crosses the wire.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DocumentService tracks user uploads and proxies the external analysis API.
type DocumentService interface {
	Upload(ctx context.Context, userID, fileName, docType string, size int64, file io.Reader) (*model.Document, error)
	List(ctx context.Context, userID string) ([]model.Document, error)
	Get(ctx context.Context, userID, id string) (*model.Document, error)
	// RefreshStatus re-reads the parse status from the analysis service and
	// persists any change.
	RefreshStatus(ctx context.Context, userID, id string) (*model.Document, error)
	GenerateReport(ctx context.Context, userID, id string) (*AnalysisReport, error)
	ExportReport(ctx context.Context, userID, id, format string) (*AnalysisExport, error)
	// RefreshParsing is the scheduled-task job: it sweeps documents still
	// marked parsing and persists ready/error transitions. Per-document
	// failures are logged and skipped; the tick never aborts early.
	RefreshParsing(ctx context.Context)
}

type documentService struct {
	cfg      *config.Config
	repo     repository.DocumentRepository
	analysis AnalysisClient
	// archive is nil when object storage is not configured; archival is
	// best effort either way.
	archive ArchiveStore
	logger  zerolog.Logger
}

// NewDocumentService creates a new DocumentService. archive may be nil.
func NewDocumentService(
	cfg *config.Config,
	repo repository.DocumentRepository,
	analysis AnalysisClient,
	archive ArchiveStore,
	logger zerolog.Logger,
) DocumentService {
	return &documentService{
		cfg:      cfg,
		repo:     repo,
		analysis: analysis,
		archive:  archive,
		logger:   logger.With().Str("service", "DocumentService").Logger(),
	}
}

func (s *documentService) Upload(ctx context.Context, userID, fileName, docType string, size int64, file io.Reader) (*model.Document, error) {
	if fileName == "" || size == 0 {
		return nil, apperror.InvalidInput("uploaded file is empty")
	}
	if size > s.cfg.MaxUploadBytes() {
		return nil, apperror.TooLarge(fmt.Sprintf("file too large (%d MB), max %d MB", size>>20, s.cfg.MaxUploadMB))
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, apperror.UnsupportedMedia("supported file types: PDF, TXT, DOCX")
	}
	if docType == "" {
		docType = DefaultDocType
	}

	doc := &model.Document{
		UserID:   userID,
		FileName: fileName,
		DocType:  docType,
		Status:   model.DocumentStatusUploading,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create document record")
		return nil, apperror.UpstreamFailure("failed to create document", err)
	}

	// The file feeds both the archive and the forward, so buffer it once.
	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to read upload body")
		return nil, apperror.InvalidInput("failed to read uploaded file")
	}

	if s.archive != nil {
		key := fmt.Sprintf("documents/%s/original%s", doc.ID, ext)
		if err := s.archive.Put(ctx, key, contentType, bytes.NewReader(data)); err != nil {
			// Archival is best effort; the analysis copy is authoritative.
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to archive original upload")
		} else if err := s.repo.SetArchived(ctx, doc.ID, key); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to record archive path")
		} else {
			doc.StoragePath = key
		}
	}

	result, err := s.analysis.Upload(ctx, fileName, docType, bytes.NewReader(data))
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to forward upload to analysis service")
		msg := err.Error()
		if updErr := s.repo.SetStatus(ctx, doc.ID, model.DocumentStatusError, &msg); updErr != nil {
			s.logger.Error().Err(updErr).Str("document_id", doc.ID).Msg("Failed to mark document as errored")
		}
		return nil, apperror.UpstreamFailure("analysis service upload failed", err)
	}

	status := result.Status
	if status == "" {
		status = model.DocumentStatusParsing
	}
	if err := s.repo.SetForwarded(ctx, doc.ID, result.DocumentID, status); err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to record remote document id")
		return nil, apperror.UpstreamFailure("failed to update document", err)
	}
	doc.RemoteID = result.DocumentID
	doc.Status = status

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("remote_id", doc.RemoteID).
		Str("status", doc.Status).
		Msg("Document uploaded and forwarded")
	return doc, nil
}

func (s *documentService) List(ctx context.Context, userID string) ([]model.Document, error) {
	docs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list documents")
		return nil, apperror.UpstreamFailure("failed to list documents", err)
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, userID, id string) (*model.Document, error) {
	return s.getOwned(ctx, userID, id)
}

func (s *documentService) RefreshStatus(ctx context.Context, userID, id string) (*model.Document, error) {
	doc, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	// Nothing to ask the analysis service about until the forward happened.
	if doc.RemoteID == "" {
		return doc, nil
	}

	status, err := s.analysis.Status(ctx, doc.RemoteID)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to fetch remote status")
		return nil, apperror.UpstreamFailure("failed to refresh document status", err)
	}
	if status.Status == doc.Status {
		return doc, nil
	}

	errMsg := errorMsgPtr(status.ErrorMsg)
	if err := s.repo.SetStatus(ctx, doc.ID, status.Status, errMsg); err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to persist status change")
		return nil, apperror.UpstreamFailure("failed to update document status", err)
	}
	doc.Status = status.Status
	doc.ErrorMsg = errMsg
	return doc, nil
}

func (s *documentService) GenerateReport(ctx context.Context, userID, id string) (*AnalysisReport, error) {
	doc, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusReady {
		return nil, apperror.Conflict("document is not ready for report generation")
	}

	report, err := s.analysis.GenerateReport(ctx, doc.RemoteID)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to generate report")
		return nil, apperror.UpstreamFailure("failed to generate report", err)
	}
	return report, nil
}

func (s *documentService) ExportReport(ctx context.Context, userID, id, format string) (*AnalysisExport, error) {
	doc, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusReady {
		return nil, apperror.Conflict("document is not ready for export")
	}

	export, err := s.analysis.ExportReport(ctx, doc.RemoteID, format)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Str("fmt", format).Msg("Failed to export report")
		return nil, apperror.UpstreamFailure("failed to export report", err)
	}
	return export, nil
}

func (s *documentService) RefreshParsing(ctx context.Context) {
	docs, err := s.repo.ListByStatus(ctx, model.DocumentStatusParsing, refreshBatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list parsing documents")
		return
	}
	for _, doc := range docs {
		if doc.RemoteID == "" {
			continue
		}
		status, err := s.analysis.Status(ctx, doc.RemoteID)
		if err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to refresh status, skipping")
			continue
		}
		if status.Status == doc.Status {
			continue
		}
		if err := s.repo.SetStatus(ctx, doc.ID, status.Status, errorMsgPtr(status.ErrorMsg)); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to persist status change, skipping")
			continue
		}
		s.logger.Info().
			Str("document_id", doc.ID).
			Str("status", status.Status).
			Msg("Document status refreshed")
	}
}

// getOwned fetches a document and hides other users' documents behind a 404.
func (s *documentService) getOwned(ctx context.Context, userID, id string) (*model.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", id).Msg("Failed to fetch document")
		return nil, apperror.UpstreamFailure("failed to fetch document", err)
	}
	if doc == nil || doc.UserID != userID {
		return nil, apperror.NotFound("document not found")
	}
	return doc, nil
}

func errorMsgPtr(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}
