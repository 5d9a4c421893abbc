// Package schedule decodes the automation agent's free-form answer into a
// ScheduleRecord. Decoding never fails: text that carries no recognizable
// record degrades to an empty course list with the text kept in Raw.
package schedule

import (
	"encoding/json"
	"strings"

	"portal-session/internal/domain/entity"
)

const (
	DefaultTerm = "Spring 2026"

	coursesField = "courses"
	fence        = "```"
)

type Source string

const (
	SourceDirect   Source = "direct"
	SourceFenced   Source = "fenced"
	SourceFallback Source = "fallback"
)

type Parser struct {
	defaultTerm string
}

func NewParser(defaultTerm string) *Parser {
	if strings.TrimSpace(defaultTerm) == "" {
		defaultTerm = DefaultTerm
	}
	return &Parser{defaultTerm: defaultTerm}
}

func (p *Parser) Parse(rawText string) *entity.ScheduleRecord {
	rec, _ := p.ParseWithSource(rawText)
	return rec
}

// ParseWithSource is Parse that also reports which decoding step succeeded.
func (p *Parser) ParseWithSource(rawText string) (*entity.ScheduleRecord, Source) {
	if rec, ok := decode(rawText); ok {
		return rec, SourceDirect
	}

	for _, block := range fencedBlocks(rawText) {
		if rec, ok := decode(stripLanguageTag(block)); ok {
			return rec, SourceFenced
		}
	}

	return &entity.ScheduleRecord{
		Term:    p.defaultTerm,
		Courses: []entity.CourseEntry{},
		Raw:     rawText,
	}, SourceFallback
}

// decode accepts only JSON objects that carry the course list field.
func decode(text string) (*entity.ScheduleRecord, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return nil, false
	}
	if _, ok := probe[coursesField]; !ok {
		return nil, false
	}

	var rec entity.ScheduleRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, false
	}
	if rec.Courses == nil {
		rec.Courses = []entity.CourseEntry{}
	}
	return &rec, true
}

// fencedBlocks returns the contents of ``` fenced blocks in document order.
// An unterminated trailing fence is treated as running to the end of text.
func fencedBlocks(text string) []string {
	parts := strings.Split(text, fence)
	if len(parts) < 2 {
		return nil
	}

	blocks := make([]string, 0, len(parts)/2)
	for i := 1; i < len(parts); i += 2 {
		blocks = append(blocks, parts[i])
	}
	return blocks
}

// stripLanguageTag drops an info string such as "json" on the opening fence line.
func stripLanguageTag(block string) string {
	nl := strings.IndexByte(block, '\n')
	if nl < 0 {
		trimmed := strings.TrimSpace(block)
		if tag, rest, ok := strings.Cut(trimmed, " "); ok && isTag(tag) {
			return rest
		}
		return strings.TrimPrefix(trimmed, "json")
	}

	first := strings.TrimSpace(block[:nl])
	if first == "" || isTag(first) {
		return block[nl+1:]
	}
	return block
}

func isTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}
