// Package models defines the data model of the record repository:
// providers, representations with their versioned file sets, data sets
// and assignments, plus the shared error taxonomy.
package models

import "time"

// File describes one named payload inside a representation version.
// The bytes themselves live in the content store under a composite key;
// Storage records which backend holds them.
type File struct {
	FileName      string    `json:"fileName"`
	MimeType      string    `json:"mimeType,omitempty"`
	MD5           string    `json:"md5,omitempty"`
	ContentLength int64     `json:"contentLength"`
	Date          time.Time `json:"date"`
	Storage       string    `json:"storage,omitempty"`
}

// Representation is one version of a record's content bundle in a given
// schema. Versions tagged Persistent are immutable; non-persistent
// versions are mutable scratch space.
type Representation struct {
	CloudID      string    `json:"cloudId"`
	Schema       string    `json:"schema"`
	Version      string    `json:"version"`
	ProviderID   string    `json:"providerId"`
	Persistent   bool      `json:"persistent"`
	CreationDate time.Time `json:"creationDate"`
	Files        []File    `json:"files"`
}

// File returns the file with the given name, or nil if the version does
// not contain it.
func (r *Representation) File(fileName string) *File {
	for i := range r.Files {
		if r.Files[i].FileName == fileName {
			return &r.Files[i]
		}
	}
	return nil
}

// Record aggregates the latest persistent representation of each schema
// sharing one cloud id.
type Record struct {
	CloudID         string           `json:"cloudId"`
	Representations []Representation `json:"representations"`
}
