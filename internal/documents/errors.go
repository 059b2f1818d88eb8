package documents

import "errors"

var (
	ErrNotFound        = errors.New("document not found")
	ErrMissingFile     = errors.New("no file provided")
	ErrUnsupportedType = errors.New("only PDF files are allowed")
	ErrTooLarge        = errors.New("file too large")
	ErrUserNotFound    = errors.New("user not found")
	// ErrNotProcessing is returned by a terminal transition that matched no
	// live processing record: the document was deleted or already settled.
	ErrNotProcessing = errors.New("document is not processing")
)
