package queue

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskkit/pkg/logger"
)

// snapshotState is the on-disk metadata format. Invocables cannot be durably
// represented, so tasks are saved as metadata only and a restored queue
// resurrects nothing: callers resubmit unfinished work after a crash. Only
// the completed-id set is read back.
type snapshotState struct {
	Queue     string      `json:"queue"`
	SavedAt   time.Time   `json:"saved_at"`
	Tasks     []Task      `json:"tasks"`
	Completed []uuid.UUID `json:"completed"`
}

// snapshotLocked captures the persistable state. Caller must hold the queue
// mutex; the actual file write happens outside it. Returns nil when
// persistence is disabled.
func (q *TaskQueue) snapshotLocked() *snapshotState {
	if q.snapshotFile == "" {
		return nil
	}

	state := &snapshotState{
		Queue:     q.name,
		SavedAt:   time.Now(),
		Tasks:     make([]Task, 0, len(q.tasks)),
		Completed: make([]uuid.UUID, 0, len(q.completed)),
	}
	for _, task := range q.tasks {
		state.Tasks = append(state.Tasks, *task)
	}
	for id := range q.completed {
		state.Completed = append(state.Completed, id)
	}
	return state
}

// writeSnapshot serializes the captured state to the snapshot file. Failures
// are logged and swallowed: persistence is best-effort and never disturbs
// queue operation. A nil state (persistence disabled) is a no-op.
func (q *TaskQueue) writeSnapshot(state *snapshotState) {
	if state == nil {
		return
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		q.log.Error("snapshot marshal failed", logger.Queue(q.name), logger.Error(err))
		return
	}
	if err := os.WriteFile(q.snapshotFile, data, 0o644); err != nil {
		q.log.Error("snapshot write failed", logger.Queue(q.name), logger.Error(err))
	}
}

// restoreSnapshot loads the completed-id set from a previous process's
// snapshot. A missing file is a clean start; a corrupt file is logged and
// ignored.
func (q *TaskQueue) restoreSnapshot() {
	data, err := os.ReadFile(q.snapshotFile)
	if err != nil {
		if !os.IsNotExist(err) {
			q.log.Error("snapshot read failed", logger.Queue(q.name), logger.Error(err))
		}
		return
	}

	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		q.log.Error("snapshot unmarshal failed", logger.Queue(q.name), logger.Error(err))
		return
	}

	for _, id := range state.Completed {
		q.completed[id] = struct{}{}
	}
	q.log.Info("snapshot restored",
		logger.Queue(q.name), slog.Int("completed", len(state.Completed)))
}
