package tasks

// TaskSchedulerInterface is what the HTTP layer needs from the scheduler:
// lifecycle, manual triggering and the outcome of the latest run.
//
//	scheduler := NewScheduler(digest, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.Trigger()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger() error
	LastRun() *RunSummary
}
