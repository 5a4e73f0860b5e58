// Package settings holds the merchant's PriceWaiter configuration.
//
// Components never read settings from a global. They receive a Provider at
// construction and call Current per request, so an admin update takes effect
// on the next request without a restart.
package settings

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pricewaiter-bridge/internal/model"
)

// AnalyticsMode selects the tracking snippet format.
type AnalyticsMode string

const (
	AnalyticsDisabled  AnalyticsMode = ""
	AnalyticsUniversal AnalyticsMode = "ua"
	AnalyticsClassic   AnalyticsMode = "ga"
)

// DefaultButtonWrapperStyle is the CSS applied around the PriceWaiter button.
const DefaultButtonWrapperStyle = "padding-top: 10px;\nclear: both;"

// DefaultManageURL is where merchants customize their button.
const DefaultManageURL = "https://manage.pricewaiter.com"

// trackingObjectPattern matches a JavaScript identifier. The object name is
// written into the snippet unquoted.
var trackingObjectPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Settings is the single settings record of an installation.
type Settings struct {
	APIKey             string        `json:"api_key"`
	APIUserID          string        `json:"api_user_id,omitempty"`
	SetupComplete      bool          `json:"setup_complete"`
	Debug              bool          `json:"debug"`
	EcommerceTracking  AnalyticsMode `json:"ecommerce_tracking"`
	TrackingObject     string        `json:"ecommerce_tracking_object,omitempty"`
	ButtonWrapperStyle string        `json:"button_wrapper_style"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Defaults returns the settings of a fresh installation.
func Defaults() Settings {
	return Settings{ButtonWrapperStyle: DefaultButtonWrapperStyle}
}

// Provider reads the current settings.
type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Store is a Provider that can also persist settings.
type Store interface {
	Provider
	Save(ctx context.Context, s Settings) error
}

// Sanitize validates s and derives SetupComplete. The returned record is
// what gets stored.
func Sanitize(s Settings) (Settings, error) {
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.APIUserID = strings.TrimSpace(s.APIUserID)
	s.TrackingObject = strings.TrimSpace(s.TrackingObject)

	if s.APIKey == "" {
		return s, model.NewValidationError("api_key", "must not be empty")
	}
	switch s.EcommerceTracking {
	case AnalyticsDisabled, AnalyticsUniversal, AnalyticsClassic:
	default:
		return s, model.NewValidationError("ecommerce_tracking",
			fmt.Sprintf("unknown mode %q (want \"\", \"ua\" or \"ga\")", s.EcommerceTracking))
	}
	if s.TrackingObject != "" && !trackingObjectPattern.MatchString(s.TrackingObject) {
		return s, model.NewValidationError("ecommerce_tracking_object", "must be a JavaScript identifier")
	}
	if s.ButtonWrapperStyle == "" {
		s.ButtonWrapperStyle = DefaultButtonWrapperStyle
	}

	s.SetupComplete = s.APIKey != "" && s.APIUserID != ""
	return s, nil
}

// CustomizeButtonURL is the merchant dashboard link for the button editor.
func CustomizeButtonURL(manageBase, apiKey string) string {
	if manageBase == "" {
		manageBase = DefaultManageURL
	}
	return strings.TrimRight(manageBase, "/") + "/stores/" + url.PathEscape(apiKey) + "/button"
}

// Redacted returns a copy safe to show outside the admin surface.
func (s Settings) Redacted() Settings {
	if len(s.APIKey) > 4 {
		s.APIKey = strings.Repeat("*", len(s.APIKey)-4) + s.APIKey[len(s.APIKey)-4:]
	} else if s.APIKey != "" {
		s.APIKey = "****"
	}
	return s
}
