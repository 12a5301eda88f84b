package photomatch

import "github.com/kailas-cloud/photomatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound             = domain.ErrNotFound
	ErrInvalidInput         = domain.ErrInvalidInput
	ErrDecodeFailure        = domain.ErrDecodeFailure
	ErrExtractionFailure    = domain.ErrExtractionFailure
	ErrInvalidArchive       = domain.ErrInvalidArchive
	ErrIntegrityConflict    = domain.ErrIntegrityConflict
	ErrVectorDimMismatch    = domain.ErrVectorDimMismatch
	ErrExtractorUnavailable = domain.ErrExtractorUnavailable
)
