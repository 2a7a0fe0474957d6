// Package search provides vector similarity search over course material
// chunks stored in PostgreSQL with pgvector.
//
// Queries may be scoped by course title and lesson number. Course names are
// resolved against the catalog before any vector query runs; an ambiguous or
// unknown name fails the search rather than silently widening it.
package search

import (
	"time"

	"github.com/google/uuid"
)

// Course is a catalog entry.
type Course struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Instructor string    `json:"instructor"`
	Link       string    `json:"link"`
	CreatedAt  time.Time `json:"created_at"`
	Lessons    []Lesson  `json:"lessons,omitempty"`
}

// Lesson is one lesson within a course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link"`
}

// Chunk is one embedded fragment of course content. LessonNumber is nil for
// course-level material preceding the first lesson.
type Chunk struct {
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Content      string
	Embedding    []float32
}

// Result is one search hit.
type Result struct {
	CourseTitle  string  `json:"course_title"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// Filter scopes a search. Zero values mean unscoped: an empty CourseName
// searches all courses, a nil LessonNumber searches all lessons.
type Filter struct {
	CourseName   string
	LessonNumber *int
}
