package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable matches any provider network or parse failure.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientHistory matches any forecast that lacked enough points.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrUnknownRegion is returned when a region cannot be resolved.
	ErrUnknownRegion = errors.New("unknown region")
)

// SourceError reports that a provider could not deliver data for a region.
type SourceError struct {
	Source string
	Region string
	Err    error
}

// NewSourceError wraps err as a SourceError. A nil err returns nil.
func NewSourceError(source, region string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Region: region, Err: err}
}

func (e *SourceError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s unavailable for %s: %v", e.Source, e.Region, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// InsufficientHistoryError reports a series too short to forecast.
type InsufficientHistoryError struct {
	Region   string
	Points   int
	Required int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: %d points, need at least %d", e.Region, e.Points, e.Required)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }
