package versioning

import "time"

// Clock abstracts wall-clock reads so tests can fix timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ScheduledTask is a cancellable pending timer.
type ScheduledTask interface {
	// Cancel stops the task if it has not fired yet. It is safe to call
	// more than once.
	Cancel()
}

// Scheduler schedules a function to run once after a delay. The debounce
// logic owns at most one outstanding task at a time.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) ScheduledTask
}

// TimerScheduler backs Scheduler with time.AfterFunc.
type TimerScheduler struct{}

type timerTask struct {
	timer *time.Timer
}

func (t *timerTask) Cancel() {
	t.timer.Stop()
}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) ScheduledTask {
	return &timerTask{timer: time.AfterFunc(delay, fn)}
}
