package models

import "time"

// DataProvider is an organisation that contributes records. Properties
// holds free-form organisation info, stored as a JSON map.
type DataProvider struct {
	ID           string            `json:"id"`
	Properties   map[string]string `json:"properties,omitempty"`
	CreationDate time.Time         `json:"creationDate"`
}
