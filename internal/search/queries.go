package search

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx connection behavior the queries need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the PostgreSQL implementation of the Querier interface.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to a pool or transaction.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// SearchChunksParams carries a filtered vector search. Nil CourseTitle or
// LessonNumber leaves that dimension unscoped.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	CourseTitle    *string
	LessonNumber   *int32
	ResultLimit    int32
}

// SearchChunksRow is one vector search hit.
type SearchChunksRow struct {
	CourseTitle  string
	LessonNumber *int32
	ChunkIndex   int32
	Content      string
	Similarity   float64
}

const searchChunksSQL = `
SELECT course_title, lesson_number, chunk_index, content,
       1 - (embedding <=> $1) AS similarity
FROM chunks
WHERE ($2::text IS NULL OR course_title = $2)
  AND ($3::int IS NULL OR lesson_number = $3)
ORDER BY embedding <=> $1, chunk_index
LIMIT $4`

// SearchChunks runs a cosine similarity search with optional course and
// lesson scoping. Ties in distance fall back to chunk order.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding, arg.CourseTitle, arg.LessonNumber, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SearchChunksRow
	for rows.Next() {
		var row SearchChunksRow
		if err := rows.Scan(&row.CourseTitle, &row.LessonNumber, &row.ChunkIndex,
			&row.Content, &row.Similarity); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const listCourseTitlesSQL = `SELECT title FROM courses ORDER BY title`

// ListCourseTitles returns all catalog titles in deterministic order.
func (q *Queries) ListCourseTitles(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listCourseTitlesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// CourseRow is a row of the courses table.
type CourseRow struct {
	ID         pgtype.UUID
	Title      string
	Instructor string
	Link       string
	CreatedAt  pgtype.Timestamptz
}

// LessonRow is a row of the lessons table.
type LessonRow struct {
	LessonNumber int32
	Title        string
	Link         string
}

const getCourseByTitleSQL = `
SELECT id, title, instructor, link, created_at
FROM courses
WHERE title = $1`

// GetCourseByTitle fetches a catalog entry by exact title.
func (q *Queries) GetCourseByTitle(ctx context.Context, title string) (CourseRow, error) {
	var row CourseRow
	err := q.db.QueryRow(ctx, getCourseByTitleSQL, title).
		Scan(&row.ID, &row.Title, &row.Instructor, &row.Link, &row.CreatedAt)
	return row, err
}

const listLessonsSQL = `
SELECT lesson_number, title, link
FROM lessons
WHERE course_id = $1
ORDER BY lesson_number`

// ListLessons returns a course's lessons in lesson order.
func (q *Queries) ListLessons(ctx context.Context, courseID pgtype.UUID) ([]LessonRow, error) {
	rows, err := q.db.Query(ctx, listLessonsSQL, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []LessonRow
	for rows.Next() {
		var row LessonRow
		if err := rows.Scan(&row.LessonNumber, &row.Title, &row.Link); err != nil {
			return nil, err
		}
		lessons = append(lessons, row)
	}
	return lessons, rows.Err()
}

const lessonLinkSQL = `
SELECT l.link
FROM lessons l
JOIN courses c ON c.id = l.course_id
WHERE c.title = $1 AND l.lesson_number = $2`

// LessonLink returns the link for one lesson, or empty when absent.
func (q *Queries) LessonLink(ctx context.Context, courseTitle string, lessonNumber int32) (string, error) {
	var link string
	err := q.db.QueryRow(ctx, lessonLinkSQL, courseTitle, lessonNumber).Scan(&link)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return link, err
}

const insertCourseSQL = `
INSERT INTO courses (title, instructor, link)
VALUES ($1, $2, $3)
ON CONFLICT (title) DO NOTHING
RETURNING id`

// InsertCourse adds a catalog entry. Returns pgx.ErrNoRows when the title
// already exists.
func (q *Queries) InsertCourse(ctx context.Context, title, instructor, link string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, insertCourseSQL, title, instructor, link).Scan(&id)
	return id, err
}

const insertLessonSQL = `
INSERT INTO lessons (course_id, lesson_number, title, link)
VALUES ($1, $2, $3, $4)
ON CONFLICT (course_id, lesson_number) DO NOTHING`

// InsertLesson adds one lesson row.
func (q *Queries) InsertLesson(ctx context.Context, courseID pgtype.UUID, number int32, title, link string) error {
	_, err := q.db.Exec(ctx, insertLessonSQL, courseID, number, title, link)
	return err
}

const insertChunkSQL = `
INSERT INTO chunks (course_title, lesson_number, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (course_title, lesson_number, chunk_index) DO NOTHING`

// InsertChunk adds one embedded chunk. Re-ingesting an existing chunk is a
// no-op, keeping ingestion idempotent.
func (q *Queries) InsertChunk(ctx context.Context, courseTitle string, lessonNumber *int32, chunkIndex int32, content string, embedding *pgvector.Vector) error {
	_, err := q.db.Exec(ctx, insertChunkSQL,
		courseTitle, lessonNumber, chunkIndex, content, embedding)
	return err
}

// IsNoRows reports whether err is pgx's no-rows error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const countChunksSQL = `SELECT count(*) FROM chunks`

// CountChunks returns the total number of stored chunks.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countChunksSQL).Scan(&count)
	return count, err
}
