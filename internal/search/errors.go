package search

import "errors"

// Sentinel errors for search operations, checked with errors.Is().
var (
	// ErrCourseNotFound indicates a course name filter matched no catalog
	// entry. The search fails rather than running unfiltered.
	ErrCourseNotFound = errors.New("course not found")

	// ErrCourseAmbiguous indicates a course name filter matched more than
	// one catalog entry. The search fails rather than guessing.
	ErrCourseAmbiguous = errors.New("ambiguous course name")

	// ErrCourseExists indicates an ingest attempt for an already-cataloged
	// course title.
	ErrCourseExists = errors.New("course already exists")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
)
