package model

import "time"

// Document parse lifecycle. The analysis service owns the parsing and
// reports back parsing/ready/error; "uploading" covers the window before
// the file has been forwarded.
const (
	DocumentStatusUploading = "uploading"
	DocumentStatusParsing   = "parsing"
	DocumentStatusReady     = "ready"
	DocumentStatusError     = "error"
)

// Document tracks a user upload and its remote analysis state.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	DocType     string    `db:"doc_type" json:"doc_type"`
	RemoteID    string    `db:"remote_id" json:"remote_id"`
	Status      string    `db:"status" json:"status"`
	ErrorMsg    *string   `db:"error_msg" json:"error_msg,omitempty"`
	StoragePath string    `db:"storage_path" json:"storage_path"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
