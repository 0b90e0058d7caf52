package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lysyi3m/rss-epub/app/feed"
)

const DefaultWorkerCount = 5

// Runner executes feed tasks on a bounded pool of workers and waits for all
// of them before returning.
type Runner struct {
	workerCount int
}

func NewRunner(workerCount int) *Runner {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Runner{workerCount: workerCount}
}

// Run returns the results of the tasks that succeeded, in task order. Failed
// tasks are logged and left out.
func (r *Runner) Run(ctx context.Context, tasks []*FetchFeedTask) []feed.FeedResult {
	taskQueue := make(chan int)
	succeeded := make([]bool, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < min(r.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range taskQueue {
				succeeded[idx] = r.executeTask(ctx, workerID, tasks[idx])
			}
		}(i)
	}

	for i := range tasks {
		taskQueue <- i
	}
	close(taskQueue)
	wg.Wait()

	results := make([]feed.FeedResult, 0, len(tasks))
	for i, task := range tasks {
		if succeeded[i] {
			results = append(results, task.Result())
		}
	}
	return results
}

func (r *Runner) executeTask(ctx context.Context, workerID int, task TaskInterface) bool {
	task.Start()

	if err := task.Execute(ctx); err != nil {
		slog.Error("Worker task execution failed",
			"worker_id", workerID,
			"type", string(task.GetType()),
			"id", task.GetID(),
			"feed", task.GetFeedName(),
			"error", err)
		return false
	}
	return true
}
