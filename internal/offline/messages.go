package offline

// MessageType names a message exchanged between the worker and its clients.
type MessageType string

const (
	// SkipWaiting asks an installed worker to activate now.
	SkipWaiting MessageType = "SKIP_WAITING"
	// ClearCache asks the worker to drop every partition.
	ClearCache MessageType = "CLEAR_CACHE"
	// SyncNow is broadcast to clients when connectivity comes back.
	SyncNow MessageType = "SYNC_NOW"
)

// Message is the unit of worker/client signaling.
type Message struct {
	Type MessageType `json:"type"`
}
