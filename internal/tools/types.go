// Package tools defines the tools the model may call during generation and
// the registry that declares them to Genkit and executes their requests.
//
// Tool results carry their source attributions as values. Sources flow from
// a tool execution through the generator to the caller of the current query
// only; nothing is shared or reset between queries.
package tools

import "errors"

// Tool name constants registered with Genkit.
const (
	// SearchCourseContentName is the tool for semantic search over course
	// material.
	SearchCourseContentName = "search_course_content"
	// GetCourseOutlineName is the tool for retrieving a course's lesson
	// list.
	GetCourseOutlineName = "get_course_outline"
)

// Sentinel errors for registry operations, checked with errors.Is().
var (
	// ErrUnknownTool indicates the model requested a tool that was never
	// registered. This is a defect in the tool declarations, not a user
	// error.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool indicates two tools were registered under one name.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// Source attributes a piece of retrieved content, shown to the user
// alongside the answer.
type Source struct {
	// Text is the display label, e.g. "Advanced Retrieval - Lesson 3".
	Text string `json:"text"`
	// Link is the lesson or course URL, empty when none is known.
	Link string `json:"link,omitempty"`
}

// Result is the outcome of one tool execution: the text handed back to the
// model plus the sources that produced it.
type Result struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}
