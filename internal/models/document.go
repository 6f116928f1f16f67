package models

import "time"

// Document is an uploaded file attached to a family
type Document struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Type      string    `json:"type"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

type DocumentPatch struct {
	Type     *string
	FileName *string
	FilePath *string
}
