package domain

// Entity is the value stored under one canonical key in the cache.
// It is one of: the pending marker (subscribed, awaiting the first upstream
// event), the removed marker (the remote document was deleted), an error
// delivered by the upstream source, or a concrete application value.
//
// Absence from the cache is not representable by Entity itself; readers carry
// presence separately (see Project).
type Entity struct {
	kind  entityKind
	value any
	err   error
}

type entityKind int

const (
	kindPending entityKind = iota
	kindRemoved
	kindValue
	kindError
)

func PendingEntity() Entity {
	return Entity{kind: kindPending}
}

func RemovedEntity() Entity {
	return Entity{kind: kindRemoved}
}

func ValueEntity(value any) Entity {
	return Entity{kind: kindValue, value: value}
}

func ErrorEntity(err error) Entity {
	return Entity{kind: kindError, err: err}
}

// EntityOf classifies an arbitrary incoming value the way the upstream wire
// protocol does: nil means the document was removed, an error is stored as an
// error entity, anything else is a concrete value.
func EntityOf(value any) Entity {
	if value == nil {
		return RemovedEntity()
	}
	if err, ok := value.(error); ok {
		return ErrorEntity(err)
	}
	return ValueEntity(value)
}

func (e Entity) IsPending() bool {
	return e.kind == kindPending
}

func (e Entity) IsRemoved() bool {
	return e.kind == kindRemoved
}

// Value returns the concrete value and whether the entity holds one.
func (e Entity) Value() (any, bool) {
	return e.value, e.kind == kindValue
}

// Err returns the stored error, or nil if the entity is not an error entity.
func (e Entity) Err() error {
	return e.err
}
