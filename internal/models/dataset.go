package models

import "time"

// DataSet is a named grouping of representation references owned by one
// provider.
type DataSet struct {
	ProviderID   string    `json:"providerId"`
	ID           string    `json:"id"`
	Description  string    `json:"description,omitempty"`
	CreationDate time.Time `json:"creationDate"`
}

// CompoundDataSetID identifies a data set across providers.
type CompoundDataSetID struct {
	ProviderID string `json:"providerId"`
	DataSetID  string `json:"dataSetId"`
}

// Assignment is a reference from a data set to a representation. An
// empty Version means a live binding: the assignment resolves to the
// current latest persistent version at read time.
type Assignment struct {
	CloudID      string    `json:"cloudId"`
	Schema       string    `json:"schema"`
	Version      string    `json:"version,omitempty"`
	CreationDate time.Time `json:"creationDate"`
}

// Pinned reports whether the assignment is frozen to one exact version.
func (a Assignment) Pinned() bool {
	return a.Version != ""
}
