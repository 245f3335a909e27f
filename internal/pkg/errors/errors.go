package errors

import "errors"

var (
	ErrClassification = errors.New("query classification failed")
	ErrEmbedding      = errors.New("embedding generation failed")
	ErrRetrieval      = errors.New("vector retrieval failed")
	ErrSummary        = errors.New("summary generation failed")
	ErrGeneration     = errors.New("answer generation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrInvalid        = errors.New("invalid")
	ErrTooMany        = errors.New("too many requests")
	ErrInternal       = errors.New("internal")
)

func IsClassification(err error) bool {
	return errors.Is(err, ErrClassification)
}

// IsRetrievalStage reports whether err came from the embed or retrieve
// stage, both of which abort the turn without touching session state.
func IsRetrievalStage(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrRetrieval)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
