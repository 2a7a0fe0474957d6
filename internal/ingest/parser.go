// Package ingest loads course documents into the catalog and chunk store.
//
// A course document is a plain text file with a metadata header followed by
// lesson-delimited content:
//
//	Course Title: MCP: Build Rich-Context AI Apps
//	Course Link: https://example.com/mcp
//	Course Instructor: Jane Doe
//
//	Lesson 0: Introduction
//	Lesson Link: https://example.com/mcp/lesson/0
//	<lesson content...>
//
//	Lesson 1: Why MCP
//	...
//
// Content before the first lesson marker is kept as course-level material.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"coursechat/internal/search"
)

// Section is a contiguous span of course content. LessonNumber is nil for
// material preceding the first lesson marker.
type Section struct {
	LessonNumber *int
	Content      string
}

// ParsedCourse is the result of parsing one course document.
type ParsedCourse struct {
	Course   search.Course
	Sections []Section
}

var lessonMarker = regexp.MustCompile(`^Lesson (\d+):\s*(.*)$`)

// Parse reads a course document. The title is required; instructor, links,
// and lessons are optional.
func Parse(r io.Reader) (*ParsedCourse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	parsed := &ParsedCourse{}
	var (
		current     *Section
		currentText strings.Builder
		inHeader    = true
	)

	flush := func() {
		if current == nil {
			return
		}
		content := strings.TrimSpace(currentText.String())
		if content != "" {
			current.Content = content
			parsed.Sections = append(parsed.Sections, *current)
		}
		currentText.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()
			inHeader = false
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid lesson number in %q: %w", line, err)
			}
			current = &Section{LessonNumber: &number}
			parsed.Course.Lessons = append(parsed.Course.Lessons, search.Lesson{
				Number: number,
				Title:  strings.TrimSpace(m[2]),
			})
			continue
		}

		if inHeader {
			switch {
			case strings.HasPrefix(line, "Course Title:"):
				parsed.Course.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
				continue
			case strings.HasPrefix(line, "Course Link:"):
				parsed.Course.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
				continue
			case strings.HasPrefix(line, "Course Instructor:"):
				parsed.Course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			// Non-metadata content before any lesson marker is course-level
			// material.
			inHeader = false
			current = &Section{}
		}

		if strings.HasPrefix(line, "Lesson Link:") && current != nil && current.LessonNumber != nil {
			link := strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			for i := range parsed.Course.Lessons {
				if parsed.Course.Lessons[i].Number == *current.LessonNumber {
					parsed.Course.Lessons[i].Link = link
				}
			}
			continue
		}

		if current == nil {
			current = &Section{}
		}
		currentText.WriteString(line)
		currentText.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading course document: %w", err)
	}
	flush()

	if parsed.Course.Title == "" {
		return nil, fmt.Errorf("course document has no Course Title header")
	}
	return parsed, nil
}
