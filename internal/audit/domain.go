package audit

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// Action names an access log event. The values are stored verbatim.
type Action string

const (
	ActionLoginSuccess           Action = "LOGIN_SUCCESS"
	ActionLoginFailed            Action = "LOGIN_FAILED"
	ActionLogout                 Action = "LOGOUT"
	ActionStaffCreated           Action = "STAFF_CREATED"
	ActionStaffUpdated           Action = "STAFF_UPDATED"
	ActionStaffDeleted           Action = "STAFF_DELETED"
	ActionPINVerificationSuccess Action = "PIN_VERIFICATION_SUCCESS"
	ActionPINVerificationFailed  Action = "PIN_VERIFICATION_FAILED"
	ActionPINReset               Action = "PIN_RESET"
	ActionPINBypassed            Action = "PIN_BYPASSED"
	ActionUserCreated            Action = "USER_CREATED"
	ActionUserDeactivated        Action = "USER_DEACTIVATED"
	ActionRoleChanged            Action = "ROLE_CHANGED"
	ActionDepartmentCreated      Action = "DEPARTMENT_CREATED"
)

const (
	// DefaultRecentLimit is used when a caller asks for Recent without a limit.
	DefaultRecentLimit = 10
	// MaxLimit caps every read.
	MaxLimit = 200
)

// ErrAuditWrite marks a failed append. It never leaves the Recorder.
var ErrAuditWrite = errors.New("audit: write failed")

// Event is what callers hand to the Recorder.
type Event struct {
	ActorID   *int64
	SubjectID *int64
	Action    Action
	IP        string
	UserAgent string
	Details   map[string]any
}

// Entry is a persisted access log row.
type Entry struct {
	ID        int64          `json:"id"`
	ActorID   *int64         `json:"actorId,omitempty"`
	SubjectID *int64         `json:"staffId,omitempty"`
	Action    Action         `json:"action"`
	At        time.Time      `json:"timestamp"`
	IP        string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ID returns a pointer for optional actor and subject fields.
func ID(v int64) *int64 {
	return &v
}

// FromRequest returns an Event for action with the request origin filled in.
func FromRequest(r *http.Request, action Action) Event {
	return Event{
		Action:    action,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// By sets the actor.
func (e Event) By(actorID int64) Event {
	e.ActorID = ID(actorID)
	return e
}

// On sets the subject staff record.
func (e Event) On(subjectID int64) Event {
	e.SubjectID = ID(subjectID)
	return e
}

// With sets the details payload.
func (e Event) With(details map[string]any) Event {
	e.Details = details
	return e
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
