package httpapi

import "portal-session/internal/domain/entity"

const (
	msgFrame    = "frame"
	msgComplete = "complete"
	msgError    = "error"

	msgClick    = "click"
	msgKeypress = "keypress"
	msgType     = "type"
)

const (
	noSessionMessage     = "No session started"
	sessionClosedMessage = "Session closed"
)

// Client messages are small JSON objects; anything larger is a protocol violation.
const maxClientMessageSize = 64 << 10

type frameMessage struct {
	Type    string `json:"type"`
	Image   string `json:"image"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type completeMessage struct {
	Type     string                 `json:"type"`
	Status   string                 `json:"status"`
	Schedule *entity.ScheduleRecord `json:"schedule"`
	Message  string                 `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// clientMessage is any client->server message; fields unused by a type are ignored.
type clientMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Key  string  `json:"key"`
	Text string  `json:"text"`
}
