package ws

import "time"

// ConnInfo carries identity and trace context captured at upgrade time, used
// for websocket lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
