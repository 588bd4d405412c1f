package domain

import "time"

// expectedDurations is the wall-clock time a job of each kind usually takes.
var expectedDurations = map[JobKind]time.Duration{
	JobKindImage:       time.Minute,
	JobKindProductShot: 2 * time.Minute,
	JobKindVideo:       7 * time.Minute,
}

// ExpectedDuration returns the elapsed-time baseline for progress estimates.
func ExpectedDuration(kind JobKind) time.Duration {
	if d, ok := expectedDurations[kind]; ok {
		return d
	}
	return expectedDurations[JobKindVideo]
}

// EstimateProgress derives a 0-99 progress value for a non-terminal job from
// the time elapsed since creation.
func EstimateProgress(kind JobKind, createdAt, now time.Time) int {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	expected := ExpectedDuration(kind)
	if elapsed >= expected {
		return ProgressDone - 1
	}
	return min(int(elapsed/(expected/100)), ProgressDone-1)
}
