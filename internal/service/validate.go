package service

import (
	"errors"
	"fmt"

	"github.com/segfault/civicgrid/backend/internal/domain"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside the WGS84
// range.
var ErrInvalidCoordinate = errors.New("coordinate out of range")

// ValidateCoordinate checks a latitude/longitude pair against the WGS84
// ranges.
func ValidateCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, lng)
	}
	return nil
}

// ValidateBounds checks each corner of a bounding box. Reversed bounds are
// legal (they describe an empty box), so only range violations fail.
func ValidateBounds(b domain.Bounds) error {
	if err := ValidateCoordinate(b.MinLat, b.MinLng); err != nil {
		return err
	}
	return ValidateCoordinate(b.MaxLat, b.MaxLng)
}
