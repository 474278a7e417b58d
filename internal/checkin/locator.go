package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseattend/internal/apiclient"
)

// Options mirror the browser geolocation request options.
type Options struct {
	HighAccuracy bool          `json:"enableHighAccuracy"`
	Timeout      time.Duration `json:"-"`
	MaximumAge   time.Duration `json:"-"`
}

// DefaultOptions: high accuracy, 10s acquisition timeout, cached fixes up to 60s old.
var DefaultOptions = Options{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 60 * time.Second}

// ErrUnsupported means the visitor's device offers no geolocation.
var ErrUnsupported = errors.New("checkin: geolocation unsupported")

// GeoErrorCode follows the browser PositionError codes.
type GeoErrorCode int

const (
	PermissionDenied    GeoErrorCode = 1
	PositionUnavailable GeoErrorCode = 2
	PositionTimeout     GeoErrorCode = 3
)

// GeoError is a failed position request.
type GeoError struct {
	Code    GeoErrorCode
	Message string
}

func (e *GeoError) Error() string {
	return fmt.Sprintf("checkin: geolocation error %d: %s", e.Code, e.Message)
}

// Locator takes one position reading.
type Locator interface {
	Locate(ctx context.Context, opts Options) (apiclient.Coords, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (apiclient.Coords, error)

func (f LocatorFunc) Locate(ctx context.Context, opts Options) (apiclient.Coords, error) {
	return f(ctx, opts)
}

// Reported replays a reading the visitor's browser already took.
type Reported struct {
	Coords apiclient.Coords
	Err    error
}

func (r Reported) Locate(ctx context.Context, _ Options) (apiclient.Coords, error) {
	if err := ctx.Err(); err != nil {
		return apiclient.Coords{}, err
	}
	if r.Err != nil {
		return apiclient.Coords{}, r.Err
	}
	return r.Coords, nil
}
