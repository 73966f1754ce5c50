package queue

// Update describes the chain after a structural change.
type Update struct {
	// Sequence increases by one with every published update of a queue.
	Sequence int64 `json:"sequence"`

	// Periods lists the holder ids from playing to loading.
	Periods []MediaPeriodID `json:"periods"`

	// Reading is the id of the reading holder, nil when the chain is empty.
	Reading *MediaPeriodID `json:"reading,omitempty"`
}

// UpdateSink receives chain updates. Publish is called on the goroutine that owns the
// queue and must not block.
type UpdateSink interface {
	Publish(u Update)
}

// SinkFunc adapts a function to UpdateSink.
type SinkFunc func(u Update)

// Publish calls f(u).
func (f SinkFunc) Publish(u Update) {
	f(u)
}

// ChannelSink buffers updates in a channel. When the buffer is full the oldest
// update is dropped, so consumers always see the most recent state.
type ChannelSink struct {
	ch chan Update
}

// NewChannelSink creates a sink holding at most buffer updates.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Update, max(1, buffer))}
}

// Publish enqueues u without blocking.
func (s *ChannelSink) Publish(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Updates returns the channel consumers read from.
func (s *ChannelSink) Updates() <-chan Update {
	return s.ch
}
