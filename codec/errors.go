package codec

import "errors"

var (
	// ErrUnsupportedFormat reports that no backend at all is registered
	// for a (kind, extension) pair.
	ErrUnsupportedFormat = errors.New("voxkit: unsupported format")
	// ErrUnknownBackend reports that a named backend has no binding for
	// the requested (kind, extension).
	ErrUnknownBackend = errors.New("voxkit: unknown backend")
	// ErrBackendRegistered reports a duplicate registration of the same
	// (kind, extension, backend) triple.
	ErrBackendRegistered = errors.New("voxkit: backend already registered")
	// ErrChunkShape reports a missing or rank-mismatched chunk shape on
	// a chunked save.
	ErrChunkShape = errors.New("voxkit: invalid chunk shape")
	// ErrMetadataUnsupported reports spatial metadata handed to a
	// backend that cannot store it.
	ErrMetadataUnsupported = errors.New("voxkit: backend does not store spatial metadata")
)
