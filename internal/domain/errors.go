package domain

import "errors"

var (
	// ErrDataUnavailable means a source file is missing or cannot be parsed.
	// Fatal at start-up.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrMalformedFilename means provenance could not be read from a filename.
	// The file is skipped and reported.
	ErrMalformedFilename = errors.New("malformed filename")

	// ErrInvalidYearLabel means a decade label has no 's' delimiter or no numeric prefix.
	// Aborts the whole load.
	ErrInvalidYearLabel = errors.New("invalid year label")

	// ErrUnknownColorKey means a series key has no entry in the color map.
	ErrUnknownColorKey = errors.New("unknown color key")

	// ErrUnknownDataset means a query named a dataset that is not in the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")
)
