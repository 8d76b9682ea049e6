package audit

import (
	"context"
	"time"

	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
)

// defaultQueueSize is the buffer size of the recorder channel.
const defaultQueueSize = 256

// writeTimeout bounds a single persisted write.
const writeTimeout = 5 * time.Second

// Recorder queues audit entries and writes them serially.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	queue  chan *Entry
	source string
}

// NewRecorder creates a recorder writing to repo. queueSize <= 0 selects the default.
func NewRecorder(repo Repository, logger *logging.Logger, source string, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		logger: logger.With("component", "audit"),
		queue:  make(chan *Entry, queueSize),
		source: source,
	}
}

// Record enqueues an entry without blocking. Entries are dropped when the queue is full.
func (r *Recorder) Record(action, entityType, entityID, userID string, details map[string]any) {
	if r == nil {
		return
	}

	entry := &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     r.source,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
		)
	}
}

// Run persists queued entries until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
