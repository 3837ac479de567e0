package domain

import "io"

// File is one payload of an ingestion batch.
type File struct {
	Name    string
	Content io.Reader
}
