package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrEmptyQuery
	ErrEmbeddingFailed
	ErrSourceCreation
	ErrPersistence
	ErrAIUnavailable
)
