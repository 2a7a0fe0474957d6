package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coursechat/internal/log"
	"coursechat/internal/search"
)

// Store is the persistence surface the ingestor depends on.
type Store interface {
	AddCourse(ctx context.Context, course search.Course) error
	AddChunks(ctx context.Context, chunks []search.Chunk) error
	ListCourseTitles(ctx context.Context) ([]string, error)
}

// Ingestor loads course documents into the store.
type Ingestor struct {
	store   Store
	chunker *Chunker
	logger  log.Logger
}

// New creates an Ingestor. chunker and logger may be nil.
func New(store Store, chunker *Chunker, logger log.Logger) *Ingestor {
	if chunker == nil {
		chunker = NewChunker(0, -1)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{store: store, chunker: chunker, logger: logger}
}

// Stats summarizes an ingestion run.
type Stats struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
}

// IngestFile loads one course document. A course whose title is already
// cataloged is skipped entirely, keeping re-runs idempotent.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (Stats, error) {
	var stats Stats

	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's docs directory
	if err != nil {
		return stats, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return stats, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := ing.store.AddCourse(ctx, parsed.Course); err != nil {
		if errors.Is(err, search.ErrCourseExists) {
			ing.logger.Debug("course already ingested, skipping",
				"title", parsed.Course.Title, "file", path)
			stats.CoursesSkipped = 1
			return stats, nil
		}
		return stats, err
	}
	stats.CoursesAdded = 1

	chunks := ing.buildChunks(parsed)
	if err := ing.store.AddChunks(ctx, chunks); err != nil {
		return stats, fmt.Errorf("storing chunks for %q: %w", parsed.Course.Title, err)
	}
	stats.ChunksAdded = len(chunks)

	ing.logger.Info("ingested course",
		"title", parsed.Course.Title,
		"lessons", len(parsed.Course.Lessons),
		"chunks", len(chunks))
	return stats, nil
}

// IngestDir loads every .txt document in a directory in name order. A file
// that fails to ingest is logged and skipped so one bad document does not
// block the rest.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("reading docs directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	var total Stats
	for _, path := range files {
		stats, err := ing.IngestFile(ctx, path)
		if err != nil {
			ing.logger.Warn("skipping document", "file", path, "error", err)
			continue
		}
		total.CoursesAdded += stats.CoursesAdded
		total.CoursesSkipped += stats.CoursesSkipped
		total.ChunksAdded += stats.ChunksAdded
	}

	ing.logger.Info("ingestion completed",
		"courses_added", total.CoursesAdded,
		"courses_skipped", total.CoursesSkipped,
		"chunks_added", total.ChunksAdded)
	return total, nil
}

// buildChunks chunks every section and labels the first chunk of each
// lesson so retrieval keeps its context even without the lesson filter.
func (ing *Ingestor) buildChunks(parsed *ParsedCourse) []search.Chunk {
	var chunks []search.Chunk
	index := 0

	for _, section := range parsed.Sections {
		for i, text := range ing.chunker.Chunk(section.Content) {
			if i == 0 && section.LessonNumber != nil {
				text = fmt.Sprintf("Lesson %d content: %s", *section.LessonNumber, text)
			}
			chunks = append(chunks, search.Chunk{
				CourseTitle:  parsed.Course.Title,
				LessonNumber: section.LessonNumber,
				ChunkIndex:   index,
				Content:      text,
			})
			index++
		}
	}
	return chunks
}
