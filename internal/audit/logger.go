package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ActionLogin    = "auth.login"
	ActionRegister = "auth.register"
	ActionEvent    = "event.create"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one audited security-relevant action.
type Entry struct {
	Action     string
	Username   string
	ResourceID string
	IPAddress  string
	UserAgent  string
	Status     string
	// Reason is a short machine-readable cause for failures. It never holds
	// secrets or credential material.
	Reason string
}

// Logger writes audit entries to a dedicated zerolog stream tagged
// log_type=audit.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{log: base.With().Str("log_type", "audit").Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	ev := l.log.Info()
	if entry.Status == StatusFailure {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", entry.Action).
		Str("status", entry.Status).
		Str("ip_address", entry.IPAddress)
	if entry.Username != "" {
		ev = ev.Str("username", entry.Username)
	}
	if entry.ResourceID != "" {
		ev = ev.Str("resource_id", entry.ResourceID)
	}
	if entry.UserAgent != "" {
		ev = ev.Str("user_agent", entry.UserAgent)
	}
	if entry.Reason != "" {
		ev = ev.Str("reason", entry.Reason)
	}
	ev.Msg("audit")
}

// LogRequest records an action using the client details of r.
func (l *Logger) LogRequest(r *http.Request, action, username, resourceID, status, reason string) {
	l.Log(Entry{
		Action:     action,
		Username:   username,
		ResourceID: resourceID,
		IPAddress:  ClientIP(r),
		UserAgent:  r.UserAgent(),
		Status:     status,
		Reason:     reason,
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the host part
// of RemoteAddr, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
