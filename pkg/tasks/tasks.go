package tasks

import "sync"

// TaskManager runs at most one background task at a time; starting a new
// one stops whatever is currently running first. There is no queue of
// pending tasks — the restart supervisor only ever wants its one sweep
// loop, so a waiting-tasks list (as the teacher's GUI-refresh version keeps,
// for coalescing rapid-fire triggers) would never hold anything here.
type TaskManager struct {
	currentTask  *Task
	waitingMutex sync.Mutex
}

type Task struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

func (t *TaskManager) NewTask(f func(stop chan struct{})) error {
	t.waitingMutex.Lock()
	defer t.waitingMutex.Unlock()

	if t.currentTask != nil {
		t.currentTask.Stop()
	}

	stop := make(chan struct{}, 1) // we don't want to block on this in case the task already returned
	notifyStopped := make(chan struct{})

	t.currentTask = &Task{
		stop:          stop,
		notifyStopped: notifyStopped,
	}

	go func() {
		f(stop)
		notifyStopped <- struct{}{}
	}()

	return nil
}

func (t *Task) Stop() {
	t.stop <- struct{}{}
	<-t.notifyStopped
	return
}

// StopCurrent stops whatever task is running, if any. The restart
// supervisor's daemon loop uses this on shutdown instead of reaching into
// the manager's internals.
func (t *TaskManager) StopCurrent() {
	t.waitingMutex.Lock()
	defer t.waitingMutex.Unlock()

	if t.currentTask != nil {
		t.currentTask.Stop()
		t.currentTask = nil
	}
}
