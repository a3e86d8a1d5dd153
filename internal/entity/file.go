package entity

import "time"

// Entry is a single file in the storage directory. Name is the primary key.
type Entry struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified"`
	ContentType string    `json:"type"`
	Downloads   int64     `json:"downloads"`
}

// UploadedFile describes one persisted part of an upload batch.
type UploadedFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

// RejectedFile is a part of an upload batch that was not persisted.
type RejectedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type UploadResult struct {
	Files    []UploadedFile `json:"files"`
	Rejected []RejectedFile `json:"rejected,omitempty"`
}

// Preview is the text preview of an entry. Content holds a placeholder when Truncated is set.
type Preview struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

type MarkdownPreview struct {
	HTML      string         `json:"html"`
	Meta      map[string]any `json:"meta,omitempty"`
	Truncated bool           `json:"truncated"`
}
