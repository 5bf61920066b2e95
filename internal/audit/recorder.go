package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/staffdir/staffdir/internal/observability"
)

// DefaultWriteTimeout bounds a single append.
const DefaultWriteTimeout = 500 * time.Millisecond

// Writer appends entries to durable storage.
type Writer interface {
	Append(ctx context.Context, entry Entry) error
}

// Recorder appends access log entries. A failed append is logged and
// counted but never reported to the caller.
type Recorder struct {
	writer  Writer
	logger  *slog.Logger
	metrics *observability.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewRecorder constructs a Recorder. A non-positive timeout selects
// DefaultWriteTimeout.
func NewRecorder(writer Writer, logger *slog.Logger, metrics *observability.Metrics, timeout time.Duration) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Recorder{
		writer:  writer,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record appends ev. The write outlives cancellation of ctx so that an
// operation that already happened is still logged when the client hangs up.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.writer == nil {
		return
	}
	entry := Entry{
		ActorID:   ev.ActorID,
		SubjectID: ev.SubjectID,
		Action:    ev.Action,
		At:        r.now().UTC(),
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
		Details:   ev.Details,
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.writer.Append(writeCtx, entry); err != nil {
		r.metrics.AuditWriteFailed()
		r.logger.Error("audit write failed",
			slog.String("action", string(ev.Action)),
			slog.Any("actor_id", ev.ActorID),
			slog.Any("subject_id", ev.SubjectID),
			slog.Any("error", fmt.Errorf("%w: %w", ErrAuditWrite, err)))
	}
}
