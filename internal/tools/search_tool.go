package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/log"
	"coursechat/internal/search"
)

// CourseSearcher is the retrieval surface the search tool depends on.
type CourseSearcher interface {
	Search(ctx context.Context, query string, filter search.Filter) ([]search.Result, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// SearchInput is the model-facing schema for search_course_content.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title to scope the search (partial names are resolved, e.g. 'MCP')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to scope the search (e.g. 3)"`
}

// SearchTool performs semantic search over course materials on behalf of
// the model.
type SearchTool struct {
	searcher CourseSearcher
	logger   log.Logger
}

// NewSearchTool creates a SearchTool. logger may be nil.
func NewSearchTool(searcher CourseSearcher, logger log.Logger) *SearchTool {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SearchTool{searcher: searcher, logger: logger}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return SearchCourseContentName }

// Description implements Tool.
func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering. " +
		"Use for questions about specific course content or detailed educational materials. " +
		"Returns matching content excerpts labeled with their course and lesson."
}

// Define implements Tool, declaring the tool and its schema to Genkit.
func (t *SearchTool) Define(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, t.Name(), t.Description(),
		func(ctx *ai.ToolContext, input SearchInput) (Result, error) {
			return t.run(ctx, input)
		})
}

// Execute implements Tool for registry-driven execution.
func (t *SearchTool) Execute(ctx context.Context, input map[string]any) (Result, error) {
	var parsed SearchInput
	if err := decodeInput(input, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing search input: %w", err)
	}
	return t.run(ctx, parsed)
}

func (t *SearchTool) run(ctx context.Context, input SearchInput) (Result, error) {
	t.logger.Info("search tool called",
		"query", input.Query,
		"course_name", input.CourseName,
		"lesson_number", input.LessonNumber)

	filter := search.Filter{
		CourseName:   input.CourseName,
		LessonNumber: input.LessonNumber,
	}

	results, err := t.searcher.Search(ctx, input.Query, filter)
	if err != nil {
		// Resolution failures are answers for the model, not faults: the
		// filter was wrong, so say so instead of silently widening it.
		if errors.Is(err, search.ErrCourseNotFound) {
			return Result{Content: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
		}
		if errors.Is(err, search.ErrCourseAmbiguous) {
			return Result{Content: fmt.Sprintf(
				"Course name '%s' matches multiple courses. Ask the user to be more specific. (%v)",
				input.CourseName, err)}, nil
		}
		return Result{}, err
	}

	if len(results) == 0 {
		return Result{Content: emptyResultMessage(input)}, nil
	}

	return t.format(ctx, results), nil
}

// format renders results as labeled blocks for the model and collects one
// source attribution per result.
func (t *SearchTool) format(ctx context.Context, results []search.Result) Result {
	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))

	for _, r := range results {
		label := r.CourseTitle
		var link string
		if r.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
			l, err := t.searcher.LessonLink(ctx, r.CourseTitle, *r.LessonNumber)
			if err != nil {
				t.logger.Warn("lesson link lookup failed",
					"course", r.CourseTitle, "lesson", *r.LessonNumber, "error", err)
			} else {
				link = l
			}
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, r.Content))
		sources = append(sources, Source{Text: label, Link: link})
	}

	return Result{
		Content: strings.Join(blocks, "\n\n"),
		Sources: sources,
	}
}

func emptyResultMessage(input SearchInput) string {
	msg := "No relevant content found"
	if input.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", input.CourseName)
	}
	if input.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *input.LessonNumber)
	}
	return msg + "."
}

// decodeInput converts the raw JSON-decoded arguments of a tool request
// into the tool's typed input.
func decodeInput(input map[string]any, out any) error {
	data, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
