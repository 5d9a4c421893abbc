package entity

import (
	"encoding/json"
	"strconv"
	"strings"
)

type ScheduleRecord struct {
	Term    string        `json:"term"`
	Courses []CourseEntry `json:"courses"`
	Raw     string        `json:"raw,omitempty"`
}

// CourseEntry fields are free-form text scraped from the portal; any of them may be empty.
type CourseEntry struct {
	Code       string `json:"code"`
	Title      string `json:"title"`
	Days       string `json:"days"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Building   string `json:"building"`
	Room       string `json:"room"`
	Instructor string `json:"instructor"`
}

// UnmarshalJSON accepts whatever shape the agent produced for a field:
// numbers and booleans are kept as their text, arrays are space-joined, null is empty.
// A course that is not an object at all becomes its Title.
func (c *CourseEntry) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	fields, ok := v.(map[string]any)
	if !ok {
		*c = CourseEntry{Title: textOf(v)}
		return nil
	}

	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := fields[k]; ok {
				return textOf(v)
			}
		}
		return ""
	}

	*c = CourseEntry{
		Code:       pick("code"),
		Title:      pick("title"),
		Days:       pick("days"),
		StartTime:  pick("start_time", "startTime"),
		EndTime:    pick("end_time", "endTime"),
		Building:   pick("building"),
		Room:       pick("room"),
		Instructor: pick("instructor"),
	}
	return nil
}

func textOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := textOf(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
