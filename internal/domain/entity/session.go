package entity

import "fmt"

type SessionStatus string

const (
	StatusIdle          SessionStatus = "idle"
	StatusAwaitingAuth  SessionStatus = "awaiting_auth"
	StatusAuthenticated SessionStatus = "authenticated"
	StatusExtracting    SessionStatus = "extracting"
	StatusComplete      SessionStatus = "complete"
	StatusError         SessionStatus = "error"
)

func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the session can no longer progress without a new start.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// PastAuth reports whether the session has already been through a positive auth verdict.
func (s SessionStatus) PastAuth() bool {
	switch s {
	case StatusAuthenticated, StatusExtracting, StatusComplete:
		return true
	}
	return false
}

var statusMessages = map[SessionStatus]string{
	StatusIdle:          "Not started",
	StatusAwaitingAuth:  "Waiting for you to log in...",
	StatusAuthenticated: "Logged in! Starting extraction...",
	StatusExtracting:    "Reading your schedule...",
}

// Snapshot is a consistent read of the session state.
type Snapshot struct {
	SessionID     string
	Status        SessionStatus
	Schedule      *ScheduleRecord
	Error         string
	SawAuthPortal bool
}

// Message derives the human-readable line shown next to the status.
func (s Snapshot) Message() string {
	return StatusMessage(s.Status, s.Schedule, s.Error)
}

func StatusMessage(status SessionStatus, schedule *ScheduleRecord, errMsg string) string {
	switch status {
	case StatusComplete:
		count := 0
		if schedule != nil {
			count = len(schedule.Courses)
		}
		return fmt.Sprintf("Done! Found %d courses.", count)
	case StatusError:
		if errMsg == "" {
			return "Unknown error"
		}
		return errMsg
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return string(status)
}
