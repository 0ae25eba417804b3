package domain

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusRemoved Status = "removed"
	StatusError   Status = "error"
)

// EntityTuple is the projection of a cache entry handed to consumers.
// It is derived on every read, never stored.
type EntityTuple struct {
	Status Status
	Value  any
	Err    error
}

func IdleTuple() EntityTuple {
	return EntityTuple{Status: StatusIdle}
}

// Project classifies a cache entry into a status tuple. present reports
// whether the key existed in the snapshot at all; an absent key is idle
// regardless of the entity value.
func Project(entity Entity, present bool) EntityTuple {
	if !present {
		return IdleTuple()
	}
	switch entity.kind {
	case kindPending:
		return EntityTuple{Status: StatusPending}
	case kindError:
		return EntityTuple{Status: StatusError, Err: entity.err}
	case kindRemoved:
		return EntityTuple{Status: StatusRemoved}
	default:
		return EntityTuple{Status: StatusSuccess, Value: entity.value}
	}
}
