package testutil

import (
	"testing"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
	"github.com/lllypuk/taskflow/internal/infrastructure/repository/inmemory"
)

// Principals used across tests. garth and salaboy mirror the demo users.
var (
	Garth   = principal.New("garth", []string{"doctor", "activitiTeam"}, false)
	Salaboy = principal.New("salaboy", []string{"activitiTeam"}, false)
	Admin   = principal.New("admin", []string{"admins"}, true)
	Nobody  = principal.Principal{}
)

// Runtimes bundles both runtimes over one in-memory store.
type Runtimes struct {
	Tasks      *taskapp.TaskRuntime
	Admin      *taskapp.TaskAdminRuntime
	Repo       *inmemory.TaskRepository
	EventStore *eventstore.InMemoryEventStore
}

// NewInMemoryRuntimes wires the task runtimes over in-memory storage.
func NewInMemoryRuntimes(t *testing.T, opts ...taskapp.ExecutorOption) *Runtimes {
	t.Helper()

	store := eventstore.NewInMemoryEventStore()
	repo := inmemory.NewTaskRepository(store)
	runtime, adminRuntime := taskapp.NewRuntimes(repo, NewTestLogger(t), opts...)

	return &Runtimes{
		Tasks:      runtime,
		Admin:      adminRuntime,
		Repo:       repo,
		EventStore: store,
	}
}

// CreateTaskCommandFixture returns a command creating a task assigned to assignee
func CreateTaskCommandFixture(assignee string) taskapp.CreateTaskCommand {
	return taskapp.CreateTaskCommand{
		Name:     "task for " + assignee,
		Assignee: assignee,
	}
}

// CreateGroupTaskCommandFixture returns a command creating a task for a candidate group
func CreateGroupTaskCommandFixture(group string) taskapp.CreateTaskCommand {
	return taskapp.CreateTaskCommand{
		Name:  "group task",
		Group: group,
	}
}
