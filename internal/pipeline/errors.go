package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorKind tags why a record landed in the error partition.
type ErrorKind string

const (
	// ErrorNormalize marks an address with no geocodable lot number.
	ErrorNormalize ErrorKind = "normalize_error"
	// ErrorGeocode marks a geocoder miss, failure, timeout or null island.
	ErrorGeocode ErrorKind = "geocode_error"
	// ErrorInvalidCoordinates marks provided coordinates that do not parse,
	// are not finite, or fall outside WGS84 bounds.
	ErrorInvalidCoordinates ErrorKind = "invalid_coordinates"
)

// RecordError is a record-level failure. It sends the record to the error
// partition and leaves the rest of the batch alone.
type RecordError struct {
	Kind ErrorKind
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func recordError(kind ErrorKind, err error) error {
	return &RecordError{Kind: kind, Err: err}
}

// AsRecordError returns the *RecordError carried by err, if any.
func AsRecordError(err error) (*RecordError, bool) {
	var re *RecordError
	if eris.As(err, &re) {
		return re, true
	}
	return nil, false
}
