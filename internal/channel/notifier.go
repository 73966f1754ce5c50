package channel

import "github.com/google/uuid"

// ChangeNotifier is told when the content that shapes a channel's timeline changes
type ChangeNotifier interface {
	PlaylistChanged(channelID uuid.UUID)
}

// NotifierFunc adapts a function to ChangeNotifier
type NotifierFunc func(channelID uuid.UUID)

// PlaylistChanged calls f
func (f NotifierFunc) PlaylistChanged(channelID uuid.UUID) { f(channelID) }

type noopNotifier struct{}

func (noopNotifier) PlaylistChanged(uuid.UUID) {}

func orNoop(n ChangeNotifier) ChangeNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
