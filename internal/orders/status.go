package orders

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// pending is the only non-terminal status; nothing ever leaves paid.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusFailed: true, StatusCanceled: true},
	StatusPaid:     {},
	StatusFailed:   {},
	StatusCanceled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether the order is settled for payment purposes.
// The shipped flag can still change on a paid order.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCanceled
}
