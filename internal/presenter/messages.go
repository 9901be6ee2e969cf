package presenter

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
)

// Message levels.
const (
	LevelError = "error"
	LevelInfo  = "info"
)

// Message is a user-visible banner or notice.
type Message struct {
	Level  string `json:"level"`
	Source string `json:"source,omitempty"`
	Region string `json:"region,omitempty"`
	Text   string `json:"text"`
}

var sourceLabels = map[string]string{
	domain.SourceNASAPower: "NASA POWER climate data",
	domain.SourceCHIRPS:    "CHIRPS rainfall",
	domain.SourceWHOGHO:    "WHO GHO health data",
}

// ErrorBanner turns a render error into an error banner.
func ErrorBanner(err error) Message {
	var se *domain.SourceError
	if errors.As(err, &se) {
		label := sourceLabels[se.Source]
		if label == "" {
			label = se.Source
		}
		text := fmt.Sprintf("%s is unavailable for %s.", label, se.Region)
		switch se.Source {
		case domain.SourceWHOGHO:
			text += " Showing climate data only."
		case domain.SourceNASAPower:
			text += " The region is left out of this view."
		}
		return Message{Level: LevelError, Source: se.Source, Region: se.Region, Text: text}
	}
	if errors.Is(err, domain.ErrUnknownRegion) {
		return Message{Level: LevelError, Text: "Could not resolve region: " + err.Error()}
	}
	return Message{Level: LevelError, Text: err.Error()}
}

// SourceNotice reports an optional source that failed without hiding data.
func SourceNotice(err error) Message {
	m := ErrorBanner(err)
	m.Level = LevelInfo
	var se *domain.SourceError
	if errors.As(err, &se) && se.Source == domain.SourceCHIRPS {
		m.Text = fmt.Sprintf("CHIRPS rainfall is unavailable for %s; using NASA POWER rainfall.", se.Region)
	}
	return m
}

// ForecastNotice explains why a region has no forecast overlay.
func ForecastNotice(region string, err error) Message {
	var ih *domain.InsufficientHistoryError
	if errors.As(err, &ih) {
		return Message{
			Level:  LevelInfo,
			Region: region,
			Text: fmt.Sprintf("Not enough case history to forecast %s (%d of %d points).",
				region, ih.Points, ih.Required),
		}
	}
	return Message{Level: LevelInfo, Region: region, Text: fmt.Sprintf("No forecast for %s: %v", region, err)}
}
