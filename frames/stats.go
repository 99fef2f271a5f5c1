package frames

import "time"

// Stats summarizes what the engine has done since it was created.
type Stats struct {
	FramesPresented int
	Recreations     int
	GateWaits       int

	// FrameTime is the mean CPU time spent in DrawFrame for presented frames.
	FrameTime time.Duration
}

type statsRecorder struct {
	stats     Stats
	frameTime time.Duration
}

func (r *statsRecorder) presented(elapsed time.Duration) {
	r.stats.FramesPresented++
	r.frameTime += elapsed
}

func (r *statsRecorder) snapshot() Stats {
	stats := r.stats
	if stats.FramesPresented > 0 {
		stats.FrameTime = r.frameTime / time.Duration(stats.FramesPresented)
	}
	return stats
}
