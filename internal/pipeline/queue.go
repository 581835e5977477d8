package pipeline

import (
	"sort"
	"time"
)

// QueuedMessage is an inbound message deferred while its topic is
// initializing. Priority is captured from the topic at enqueue time.
type QueuedMessage struct {
	TopicID    string
	Text       string
	SenderID   string
	Priority   int
	EnqueuedAt time.Time
	seq        uint64
}

// orderQueue sorts deferred messages for draining: highest priority
// first, stable FIFO within a priority band (by enqueue sequence).
func orderQueue(msgs []QueuedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Priority != msgs[j].Priority {
			return msgs[i].Priority > msgs[j].Priority
		}
		return msgs[i].seq < msgs[j].seq
	})
}
