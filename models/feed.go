package models

import "time"

// FeedState tracks the lifecycle of one per-symbol feed.
type FeedState int32

const (
	FeedStopped FeedState = iota
	FeedStarting
	FeedRunning
	FeedReconnecting
	FeedFailed
)

func (s FeedState) String() string {
	switch s {
	case FeedStopped:
		return "stopped"
	case FeedStarting:
		return "starting"
	case FeedRunning:
		return "running"
	case FeedReconnecting:
		return "reconnecting"
	case FeedFailed:
		return "failed"
	}
	return "unknown"
}

// Alive reports whether more bars may still arrive in this state.
// Stopped and Failed are terminal; Starting precedes the first subscribe
// and is never observed by the pull side.
func (s FeedState) Alive() bool {
	return s == FeedRunning || s == FeedReconnecting
}

// LoadResult is the tri-state outcome of a pull. A plain "more data?"
// boolean cannot express a live feed whose buffer is momentarily empty,
// which is why Empty and Ended are distinct.
type LoadResult int

const (
	// LoadEnded means no more data will ever arrive; the execution
	// engine must treat the feed as end-of-stream.
	LoadEnded LoadResult = iota
	// LoadEmpty means the buffer holds nothing right now but the feed
	// is still live; the engine must poll again later.
	LoadEmpty
	// LoadLoaded means the oldest buffered bar was returned.
	LoadLoaded
)

func (r LoadResult) String() string {
	switch r {
	case LoadEnded:
		return "ended"
	case LoadEmpty:
		return "empty"
	case LoadLoaded:
		return "loaded"
	}
	return "unknown"
}

// FeedStatus is a read-only monitoring snapshot of one feed.
type FeedStatus struct {
	Symbol      string    `json:"symbol"`
	State       string    `json:"state"`
	Buffered    int       `json:"buffered"`
	Capacity    int       `json:"capacity"`
	LastBarTime time.Time `json:"last_bar_time"`
}
