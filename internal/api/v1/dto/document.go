package dto

import "time"

// DocumentResponseDTO is returned for single documents and list entries
type DocumentResponseDTO struct {
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name"`
	DocType     string    `json:"doc_type"`
	Status      string    `json:"status"`
	StoragePath string    `json:"storage_path,omitempty"`
	ErrorMsg    string    `json:"error_msg,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentStatusResponseDTO mirrors the analysis service status payload
type DocumentStatusResponseDTO struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ErrorMsg   string `json:"error_msg,omitempty"`
}

// ReportResponseDTO carries a generated report
type ReportResponseDTO struct {
	HTML     string         `json:"html"`
	Metadata map[string]any `json:"metadata"`
}

// ExportRequestDTO selects the export format
type ExportRequestDTO struct {
	Fmt string `json:"fmt" validate:"required,oneof=pdf docx"`
}
