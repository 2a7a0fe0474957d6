package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/log"
	"coursechat/internal/search"
)

// CourseOutliner is the catalog surface the outline tool depends on.
type CourseOutliner interface {
	Outline(ctx context.Context, name string) (*search.Course, error)
}

// OutlineInput is the model-facing schema for get_course_outline.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title to outline (partial names are resolved, e.g. 'MCP')"`
}

// OutlineTool returns a course's structure: its title, link, and complete
// lesson list.
type OutlineTool struct {
	outliner CourseOutliner
	logger   log.Logger
}

// NewOutlineTool creates an OutlineTool. logger may be nil.
func NewOutlineTool(outliner CourseOutliner, logger log.Logger) *OutlineTool {
	if logger == nil {
		logger = log.NewNop()
	}
	return &OutlineTool{outliner: outliner, logger: logger}
}

// Name implements Tool.
func (t *OutlineTool) Name() string { return GetCourseOutlineName }

// Description implements Tool.
func (t *OutlineTool) Description() string {
	return "Get the complete outline of a course: its title, link, and all lesson " +
		"numbers with titles. Use for questions about a course's structure or " +
		"what lessons it contains."
}

// Define implements Tool, declaring the tool and its schema to Genkit.
func (t *OutlineTool) Define(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, t.Name(), t.Description(),
		func(ctx *ai.ToolContext, input OutlineInput) (Result, error) {
			return t.run(ctx, input)
		})
}

// Execute implements Tool for registry-driven execution.
func (t *OutlineTool) Execute(ctx context.Context, input map[string]any) (Result, error) {
	var parsed OutlineInput
	if err := decodeInput(input, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing outline input: %w", err)
	}
	return t.run(ctx, parsed)
}

func (t *OutlineTool) run(ctx context.Context, input OutlineInput) (Result, error) {
	t.logger.Info("outline tool called", "course_name", input.CourseName)

	course, err := t.outliner.Outline(ctx, input.CourseName)
	if err != nil {
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

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", course.Link)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	return Result{
		Content: strings.TrimRight(b.String(), "\n"),
		Sources: []Source{{Text: course.Title, Link: course.Link}},
	}, nil
}
