package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"coursechat/internal/log"
)

// embedTimeout bounds embedding generation plus the vector query so a slow
// provider cannot block a request indefinitely.
const embedTimeout = 10 * time.Second

// Querier defines the database operations Store depends on. The interface
// lives with the consumer; Queries in this package is the PostgreSQL
// implementation.
type Querier interface {
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)
	ListCourseTitles(ctx context.Context) ([]string, error)
	GetCourseByTitle(ctx context.Context, title string) (CourseRow, error)
	ListLessons(ctx context.Context, courseID pgtype.UUID) ([]LessonRow, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int32) (string, error)
	InsertCourse(ctx context.Context, title, instructor, link string) (pgtype.UUID, error)
	InsertLesson(ctx context.Context, courseID pgtype.UUID, number int32, title, link string) error
	InsertChunk(ctx context.Context, courseTitle string, lessonNumber *int32, chunkIndex int32, content string, embedding *pgvector.Vector) error
	CountChunks(ctx context.Context) (int64, error)
}

// Store performs semantic search over course chunks.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries    Querier
	embedder   ai.Embedder
	maxResults int32
	logger     log.Logger
}

// New creates a Store. maxResults bounds every search (top-k); logger may
// be nil.
func New(querier Querier, embedder ai.Embedder, maxResults int32, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Store{
		queries:    querier,
		embedder:   embedder,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Search embeds the query and returns the most similar chunks, scoped by
// the filter. The course name, if any, is resolved against the catalog
// first; resolution failures return ErrCourseNotFound or ErrCourseAmbiguous
// without running a vector query. An empty result set is not an error.
func (s *Store) Search(ctx context.Context, query string, filter Filter) ([]Result, error) {
	var courseTitle *string
	if filter.CourseName != "" {
		resolved, err := s.ResolveCourseName(ctx, filter.CourseName)
		if err != nil {
			return nil, err
		}
		courseTitle = &resolved
	}

	queryCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, err
	}

	var lessonNumber *int32
	if filter.LessonNumber != nil {
		n := int32(*filter.LessonNumber)
		lessonNumber = &n
	}

	rows, err := s.queries.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: embedding,
		CourseTitle:    courseTitle,
		LessonNumber:   lessonNumber,
		ResultLimit:    s.maxResults,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		r := Result{
			CourseTitle: row.CourseTitle,
			Content:     row.Content,
			Similarity:  row.Similarity,
		}
		if row.LessonNumber != nil {
			n := int(*row.LessonNumber)
			r.LessonNumber = &n
		}
		results = append(results, r)
	}

	s.logger.Debug("search completed",
		"results", len(results),
		"course_filter", filter.CourseName,
		"lesson_filter", filter.LessonNumber)
	return results, nil
}

// ResolveCourseName resolves a partial course name to its exact catalog
// title. Unknown names return ErrCourseNotFound and names matching several
// courses return ErrCourseAmbiguous.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	titles, err := s.queries.ListCourseTitles(ctx)
	if err != nil {
		return "", fmt.Errorf("listing course titles: %w", err)
	}

	match := MatchCourseTitle(name, titles)
	switch match.Kind {
	case MatchExact:
		return match.Title, nil
	case MatchAmbiguous:
		return "", fmt.Errorf("%w: %q matches %v", ErrCourseAmbiguous, name, match.Candidates)
	default:
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
}

// ListCourseTitles returns all catalog titles.
func (s *Store) ListCourseTitles(ctx context.Context) ([]string, error) {
	titles, err := s.queries.ListCourseTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing course titles: %w", err)
	}
	return titles, nil
}

// Outline returns a course's catalog entry with its lessons. The name is
// resolved like a search filter.
func (s *Store) Outline(ctx context.Context, name string) (*Course, error) {
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}

	row, err := s.queries.GetCourseByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("getting course %q: %w", title, err)
	}

	lessonRows, err := s.queries.ListLessons(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("listing lessons for %q: %w", title, err)
	}

	course := &Course{
		ID:         pgUUIDToUUID(row.ID),
		Title:      row.Title,
		Instructor: row.Instructor,
		Link:       row.Link,
		CreatedAt:  row.CreatedAt.Time,
		Lessons:    make([]Lesson, 0, len(lessonRows)),
	}
	for _, lr := range lessonRows {
		course.Lessons = append(course.Lessons, Lesson{
			Number: int(lr.LessonNumber),
			Title:  lr.Title,
			Link:   lr.Link,
		})
	}
	return course, nil
}

// LessonLink returns the link for a lesson, or empty when the lesson has
// none.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	link, err := s.queries.LessonLink(ctx, courseTitle, int32(lessonNumber))
	if err != nil {
		return "", fmt.Errorf("looking up lesson link: %w", err)
	}
	return link, nil
}

// AddCourse catalogs a course and its lessons. Returns ErrCourseExists if
// the title is already cataloged, letting ingestion skip processed files.
func (s *Store) AddCourse(ctx context.Context, course Course) error {
	id, err := s.queries.InsertCourse(ctx, course.Title, course.Instructor, course.Link)
	if err != nil {
		if IsNoRows(err) {
			return fmt.Errorf("course %q: %w", course.Title, ErrCourseExists)
		}
		return fmt.Errorf("inserting course %q: %w", course.Title, err)
	}

	for _, lesson := range course.Lessons {
		if err := s.queries.InsertLesson(ctx, id, int32(lesson.Number), lesson.Title, lesson.Link); err != nil {
			return fmt.Errorf("inserting lesson %d of %q: %w", lesson.Number, course.Title, err)
		}
	}

	s.logger.Debug("added course", "title", course.Title, "lessons", len(course.Lessons))
	return nil
}

// AddChunks embeds and stores content chunks. Chunks are embedded one at a
// time; a failure aborts the batch with the index of the failed chunk.
func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	for i, chunk := range chunks {
		embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		embedding, err := s.embed(embedCtx, chunk.Content)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", i, chunk.CourseTitle, err)
		}

		var lessonNumber *int32
		if chunk.LessonNumber != nil {
			n := int32(*chunk.LessonNumber)
			lessonNumber = &n
		}

		if err := s.queries.InsertChunk(ctx, chunk.CourseTitle, lessonNumber,
			int32(chunk.ChunkIndex), chunk.Content, embedding); err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", i, chunk.CourseTitle, err)
		}
	}

	s.logger.Debug("added chunks", "count", len(chunks))
	return nil
}

// CountChunks returns the total number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// embed generates the vector for one piece of text.
func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	v := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &v, nil
}

func pgUUIDToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
