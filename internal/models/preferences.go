package models

import "time"

// Preferences is the persisted part of the session. Absent values are nil or empty.
type Preferences struct {
	AuthToken          string
	ViewMode           *ViewMode
	SelectedChildID    *int64
	BiometricEnabled   bool
	BiometricLastSetup *time.Time
}

// Biometric returns the biometric settings held in the preferences
func (p Preferences) Biometric() BiometricSettings {
	return BiometricSettings{
		Enabled:     p.BiometricEnabled,
		LastSetupAt: p.BiometricLastSetup,
	}
}
