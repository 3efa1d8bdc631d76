// Package models defines server-side data models persisted in the database.
package models

import "time"

// File storage backends.
const (
	StorageDB = "db"
	StorageS3 = "s3"
)

// File describes an uploaded file. Data is set only for the db backend,
// StorageKey only for s3.
type File struct {
	ID           int64
	UserID       int64
	OriginalName string
	FileType     string
	FileSize     int64
	Storage      string
	Data         []byte
	StorageKey   string
	CreatedAt    time.Time
}
