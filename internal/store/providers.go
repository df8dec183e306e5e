package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kilupskalvis/recstore/internal/models"
)

// CreateProvider inserts a new data provider row.
func (s *Store) CreateProvider(provider *models.DataProvider) error {
	props, err := json.Marshal(provider.Properties)
	if err != nil {
		return fmt.Errorf("failed to serialize provider properties: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO data_providers (provider_id, properties, creation_date)
		VALUES (?, ?, ?)`,
		provider.ID, string(props), formatTime(provider.CreationDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrProviderAlreadyExists
		}
		return err
	}
	return nil
}

// GetProvider retrieves a data provider by id.
func (s *Store) GetProvider(providerID string) (*models.DataProvider, error) {
	var provider models.DataProvider
	var props sql.NullString
	var created string

	err := s.db.QueryRow(`
		SELECT provider_id, properties, creation_date
		FROM data_providers WHERE provider_id = ?`, providerID).Scan(
		&provider.ID, &props, &created,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrProviderNotExists
	}
	if err != nil {
		return nil, err
	}

	provider.CreationDate = parseTimestamp(created)
	if props.Valid && props.String != "" && props.String != "null" {
		if err := json.Unmarshal([]byte(props.String), &provider.Properties); err != nil {
			return nil, fmt.Errorf("failed to parse provider properties: %w", err)
		}
	}
	return &provider, nil
}

// ProviderExists reports whether a provider row exists.
func (s *Store) ProviderExists(providerID string) (bool, error) {
	_, err := s.GetProvider(providerID)
	if errors.Is(err, models.ErrProviderNotExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListProviders returns providers ordered by id, starting at the
// threshold id (inclusive).
func (s *Store) ListProviders(thresholdID string, limit int) ([]models.DataProvider, error) {
	rows, err := s.db.Query(`
		SELECT provider_id, properties, creation_date
		FROM data_providers
		WHERE provider_id >= ?
		ORDER BY provider_id
		LIMIT ?`, thresholdID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []models.DataProvider
	for rows.Next() {
		var provider models.DataProvider
		var props sql.NullString
		var created string
		if err := rows.Scan(&provider.ID, &props, &created); err != nil {
			return nil, err
		}
		provider.CreationDate = parseTimestamp(created)
		if props.Valid && props.String != "" && props.String != "null" {
			if err := json.Unmarshal([]byte(props.String), &provider.Properties); err != nil {
				return nil, fmt.Errorf("failed to parse provider properties: %w", err)
			}
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}

// DeleteProvider removes a provider row. Deletion is forbidden while the
// provider still owns data sets or representation versions.
func (s *Store) DeleteProvider(providerID string) error {
	if _, err := s.GetProvider(providerID); err != nil {
		return err
	}

	var n int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM data_sets WHERE provider_id = ?`, providerID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return models.ErrProviderInUse
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM representation_versions WHERE provider_id = ? LIMIT 1`, providerID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return models.ErrProviderInUse
	}

	_, err := s.db.Exec(`DELETE FROM data_providers WHERE provider_id = ?`, providerID)
	return err
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
