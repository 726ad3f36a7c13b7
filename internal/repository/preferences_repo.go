package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"childbehavior/internal/database"
	"childbehavior/internal/models"
)

// Preference keys stored in the preferences table
const (
	KeyAuthToken          = "auth_token"
	KeyViewMode           = "view_mode"
	KeySelectedChildID    = "selected_child_id"
	KeyBiometricEnabled   = "biometric_enabled"
	KeyBiometricLastSetup = "biometric_last_setup"
)

var allKeys = []string{
	KeyAuthToken,
	KeyViewMode,
	KeySelectedChildID,
	KeyBiometricEnabled,
	KeyBiometricLastSetup,
}

// PreferencesRepository persists the device-local session preferences
type PreferencesRepository struct {
	db *database.DB
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(db *database.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// Get retrieves a single preference value. ok is false when the key is absent.
func (r *PreferencesRepository) Get(key string) (value string, ok bool, err error) {
	err = r.db.QueryRow(r.db.SQL.Get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces a single preference value
func (r *PreferencesRepository) Set(key, value string) error {
	if _, err := r.db.Exec(r.db.SQL.Upsert, key, value); err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

// Load reads every stored preference. Values that cannot be parsed are treated as absent.
func (r *PreferencesRepository) Load() (models.Preferences, error) {
	var prefs models.Preferences

	rows, err := r.db.Query(r.db.SQL.List)
	if err != nil {
		return prefs, fmt.Errorf("failed to load preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return prefs, fmt.Errorf("failed to scan preference: %w", err)
		}
		applyPreference(&prefs, key, value)
	}
	if err := rows.Err(); err != nil {
		return prefs, fmt.Errorf("failed to load preferences: %w", err)
	}

	return prefs, nil
}

func applyPreference(prefs *models.Preferences, key, value string) {
	switch key {
	case KeyAuthToken:
		prefs.AuthToken = value
	case KeyViewMode:
		if mode, ok := models.ParseViewMode(value); ok {
			prefs.ViewMode = &mode
		} else {
			log.Printf("Warning: ignoring stored view mode %q", value)
		}
	case KeySelectedChildID:
		if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
			prefs.SelectedChildID = &id
		} else {
			log.Printf("Warning: ignoring stored child id %q", value)
		}
	case KeyBiometricEnabled:
		prefs.BiometricEnabled = value == "true"
	case KeyBiometricLastSetup:
		if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
			prefs.BiometricLastSetup = &ts
		}
	}
}

// Save writes the full preference set in one transaction. Absent values are deleted.
func (r *PreferencesRepository) Save(prefs models.Preferences) error {
	values := encodePreferences(prefs)

	return r.db.WithTx(func(tx *sql.Tx) error {
		for _, key := range allKeys {
			value, present := values[key]
			if !present {
				if _, err := tx.Exec(r.db.SQL.Delete, key); err != nil {
					return fmt.Errorf("failed to delete preference %s: %w", key, err)
				}
				continue
			}
			if _, err := tx.Exec(r.db.SQL.Upsert, key, value); err != nil {
				return fmt.Errorf("failed to write preference %s: %w", key, err)
			}
		}
		return nil
	})
}

func encodePreferences(prefs models.Preferences) map[string]string {
	values := make(map[string]string, len(allKeys))
	if prefs.AuthToken != "" {
		values[KeyAuthToken] = prefs.AuthToken
	}
	if prefs.ViewMode != nil {
		values[KeyViewMode] = string(*prefs.ViewMode)
	}
	if prefs.SelectedChildID != nil {
		values[KeySelectedChildID] = strconv.FormatInt(*prefs.SelectedChildID, 10)
	}
	values[KeyBiometricEnabled] = strconv.FormatBool(prefs.BiometricEnabled)
	if prefs.BiometricLastSetup != nil {
		values[KeyBiometricLastSetup] = prefs.BiometricLastSetup.UTC().Format(time.RFC3339Nano)
	}
	return values
}

// Clear removes every stored preference
func (r *PreferencesRepository) Clear() error {
	if _, err := r.db.Exec(r.db.SQL.Clear); err != nil {
		return fmt.Errorf("failed to clear preferences: %w", err)
	}
	return nil
}
