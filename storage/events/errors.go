package events

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrUnknownDriver = Err("unknown event store driver")
	ErrMissingDSN    = Err("event store dsn required")
	ErrInvalidRecord = Err("invalid event record")
)
