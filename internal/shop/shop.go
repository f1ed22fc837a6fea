package shop

import "time"

const (
	StatusActive      = "active"
	StatusUninstalled = "uninstalled"
)

type Shop struct {
	ID          string
	Domain      string
	AccessToken string
	Scope       string
	Name        string
	Email       string
	Plan        string
	Status      string
	InstalledAt time.Time

	// UninstalledAt is set when the app/uninstalled webhook lands and
	// cleared again on reinstall.
	UninstalledAt *time.Time
}

// Installed reports whether the shop currently has the app.
func (s *Shop) Installed() bool {
	return s != nil && s.Status == StatusActive && s.AccessToken != ""
}
