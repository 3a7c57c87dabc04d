package tvl

import "errors"

var (
	// ErrFormatIntegrity means the container disagrees with itself, e.g. a record offset that
	// doesn't match the cursor. It is fatal for the whole run.
	ErrFormatIntegrity = errors.New("format integrity violation")
	// ErrDecompression means a single payload failed to inflate. The record is skipped.
	ErrDecompression = errors.New("payload decompression failed")
	// ErrSizeLimit means a payload is larger than the configured limit. The record is skipped.
	ErrSizeLimit = errors.New("payload size limit exceeded")
	// ErrMalformedPayload means an inflated payload doesn't match the record geometry. The
	// record is skipped.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedFormat means a payload has no known signature. The record is skipped.
	ErrUnsupportedFormat = errors.New("unsupported payload format")
	// ErrNotImplemented means there is no rendering path for the payload type.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNotFound means the requested collection or image doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Recoverable reports whether err only affects a single record.
func Recoverable(err error) bool {
	return errors.Is(err, ErrDecompression) ||
		errors.Is(err, ErrSizeLimit) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrUnsupportedFormat)
}
