package errors

import "errors"

var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrRunNotFound    = errors.New("run not found")

	ErrInvalidSelection    = errors.New("invalid selection")
	ErrUnsupportedDataType = errors.New("unsupported data type")
	ErrInvalidWorkers      = errors.New("max workers must be positive")

	ErrNotFound         = errors.New("remote file not found")
	ErrTransientNetwork = errors.New("transient network error")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
	ErrChecksumFormat   = errors.New("malformed checksum sidecar")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSidecarMissing   = errors.New("checksum sidecar not found")

	ErrServiceShutdown = errors.New("service is shutting down")
)
