package domain

import "errors"

var (
	// ErrNoDocument is returned by Ask before any document has been ingested.
	ErrNoDocument = errors.New("no document has been ingested")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrUnsupportedDocument reports a file type the loader cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrEmptyDocument reports a document with no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)
