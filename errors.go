package lawqa

import "errors"

var (
	// ErrSourceNotFound is returned when a source name has not been ingested.
	ErrSourceNotFound = errors.New("lawqa: source not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("lawqa: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("lawqa: parsing failed")

	// ErrNoRecords is returned when a document yields no law records.
	ErrNoRecords = errors.New("lawqa: no law records found")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("lawqa: embedding generation failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("lawqa: invalid configuration")
)
