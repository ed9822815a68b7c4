package tasks

// TaskSchedulerInterface is used by the server to run feed generation in the
// background.
//
//	scheduler := NewScheduler(pipeline, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	taskID, err := scheduler.Trigger(OriginAPI)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Trigger(origin string) (string, error)
}
