package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coursechat/internal/log"
	"coursechat/internal/search"
)

// mockSearcher implements CourseSearcher for testing.
type mockSearcher struct {
	searchErr  error
	results    []search.Result
	links      map[string]string // "course/lesson" -> link
	lastQuery  string
	lastFilter search.Filter
}

func (m *mockSearcher) Search(ctx context.Context, query string, filter search.Filter) ([]search.Result, error) {
	m.lastQuery = query
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockSearcher) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	return m.links[courseTitle], nil
}

// mockOutliner implements CourseOutliner for testing.
type mockOutliner struct {
	outlineErr error
	course     *search.Course
}

func (m *mockOutliner) Outline(ctx context.Context, name string) (*search.Course, error) {
	if m.outlineErr != nil {
		return nil, m.outlineErr
	}
	return m.course, nil
}

func intPtr(n int) *int { return &n }

func TestSearchToolFormatsResults(t *testing.T) {
	searcher := &mockSearcher{
		results: []search.Result{
			{CourseTitle: "Intro to RAG", LessonNumber: intPtr(2), Content: "chunked text"},
			{CourseTitle: "Intro to RAG", LessonNumber: nil, Content: "course overview"},
		},
		links: map[string]string{"Intro to RAG": "https://example.com/rag/2"},
	}
	tool := NewSearchTool(searcher, log.NewNop())

	result, err := tool.Execute(context.Background(), map[string]any{"query": "what is chunking?"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.Contains(result.Content, "[Intro to RAG - Lesson 2]\nchunked text") {
		t.Errorf("content missing lesson block:\n%s", result.Content)
	}
	if !strings.Contains(result.Content, "[Intro to RAG]\ncourse overview") {
		t.Errorf("content missing course-level block:\n%s", result.Content)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(result.Sources))
	}
	if result.Sources[0].Text != "Intro to RAG - Lesson 2" || result.Sources[0].Link != "https://example.com/rag/2" {
		t.Errorf("source 0 = %+v", result.Sources[0])
	}
	if result.Sources[1].Link != "" {
		t.Errorf("course-level source should have no lesson link: %+v", result.Sources[1])
	}
}

func TestSearchToolPassesFilter(t *testing.T) {
	searcher := &mockSearcher{}
	tool := NewSearchTool(searcher, log.NewNop())

	_, err := tool.Execute(context.Background(), map[string]any{
		"query":         "tool calling",
		"course_name":   "MCP",
		"lesson_number": float64(3), // JSON numbers decode as float64
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if searcher.lastFilter.CourseName != "MCP" {
		t.Errorf("course filter = %q, want MCP", searcher.lastFilter.CourseName)
	}
	if searcher.lastFilter.LessonNumber == nil || *searcher.lastFilter.LessonNumber != 3 {
		t.Errorf("lesson filter = %v, want 3", searcher.lastFilter.LessonNumber)
	}
}

func TestSearchToolCourseNotFound(t *testing.T) {
	searcher := &mockSearcher{searchErr: search.ErrCourseNotFound}
	tool := NewSearchTool(searcher, log.NewNop())

	result, err := tool.Execute(context.Background(), map[string]any{
		"query": "q", "course_name": "ghost course",
	})
	if err != nil {
		t.Fatalf("resolution failure should be a model-facing message, got error: %v", err)
	}
	if result.Content != "No course found matching 'ghost course'" {
		t.Errorf("content = %q", result.Content)
	}
	if len(result.Sources) != 0 {
		t.Errorf("sources = %v, want none", result.Sources)
	}
}

func TestSearchToolAmbiguousCourse(t *testing.T) {
	searcher := &mockSearcher{searchErr: search.ErrCourseAmbiguous}
	tool := NewSearchTool(searcher, log.NewNop())

	result, err := tool.Execute(context.Background(), map[string]any{
		"query": "q", "course_name": "Intro",
	})
	if err != nil {
		t.Fatalf("ambiguity should be a model-facing message, got error: %v", err)
	}
	if !strings.Contains(result.Content, "matches multiple courses") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestSearchToolInfrastructureErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{searchErr: errors.New("connection refused")}
	tool := NewSearchTool(searcher, log.NewNop())

	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q"}); err == nil {
		t.Fatal("Execute succeeded, want infrastructure error")
	}
}

func TestSearchToolEmptyResults(t *testing.T) {
	tool := NewSearchTool(&mockSearcher{}, log.NewNop())

	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{"unfiltered", map[string]any{"query": "q"},
			"No relevant content found."},
		{"course filter", map[string]any{"query": "q", "course_name": "MCP"},
			"No relevant content found in course 'MCP'."},
		{"both filters", map[string]any{"query": "q", "course_name": "MCP", "lesson_number": float64(5)},
			"No relevant content found in course 'MCP' in lesson 5."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if result.Content != tt.want {
				t.Errorf("content = %q, want %q", result.Content, tt.want)
			}
		})
	}
}

func TestOutlineTool(t *testing.T) {
	outliner := &mockOutliner{
		course: &search.Course{
			Title: "MCP: Build Rich-Context AI Apps",
			Link:  "https://example.com/mcp",
			Lessons: []search.Lesson{
				{Number: 0, Title: "Introduction"},
				{Number: 1, Title: "Why MCP"},
			},
		},
	}
	tool := NewOutlineTool(outliner, log.NewNop())

	result, err := tool.Execute(context.Background(), map[string]any{"course_name": "MCP"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{
		"Course: MCP: Build Rich-Context AI Apps",
		"Link: https://example.com/mcp",
		"Lessons (2):",
		"Lesson 0: Introduction",
		"Lesson 1: Why MCP",
	} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("content missing %q:\n%s", want, result.Content)
		}
	}
	if len(result.Sources) != 1 || result.Sources[0].Text != "MCP: Build Rich-Context AI Apps" {
		t.Errorf("sources = %+v", result.Sources)
	}
}

func TestOutlineToolCourseNotFound(t *testing.T) {
	tool := NewOutlineTool(&mockOutliner{outlineErr: search.ErrCourseNotFound}, log.NewNop())

	result, err := tool.Execute(context.Background(), map[string]any{"course_name": "ghost"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "No course found matching 'ghost'" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestRegistryExecute(t *testing.T) {
	registry := NewRegistry(log.NewNop())
	searcher := &mockSearcher{
		results: []search.Result{{CourseTitle: "Intro", Content: "text"}},
	}
	if err := registry.Register(NewSearchTool(searcher, log.NewNop())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := registry.Execute(context.Background(), SearchCourseContentName,
		map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Content, "text") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	registry := NewRegistry(log.NewNop())

	_, err := registry.Execute(context.Background(), "no_such_tool", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Execute error = %v, want ErrUnknownTool", err)
	}
}

func TestRegistryDuplicateTool(t *testing.T) {
	registry := NewRegistry(log.NewNop())
	tool := NewSearchTool(&mockSearcher{}, log.NewNop())

	if err := registry.Register(tool); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := registry.Register(tool); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("second Register error = %v, want ErrDuplicateTool", err)
	}
}
