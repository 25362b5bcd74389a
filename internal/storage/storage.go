package storage

import "farmLedger/internal/model"

// EventLog is a sink for audit events.
type EventLog interface {
	Emit(event model.Event)
}
