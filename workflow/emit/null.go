package emit

// NullEmitter discards all events. Use to disable event emission
// without changing engine wiring.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter. Safe for concurrent use.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
