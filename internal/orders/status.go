package orders

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusProcessing: true, StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether an admin may move an order from one
// status to another. The permissive mode (strict=false) is the
// documented baseline: any known, different status is reachable.
// Strict mode enforces the transition table above.
func CanTransition(from, to Status, strict bool) bool {
	if _, ok := ParseStatus(string(from)); !ok {
		return false
	}
	if _, ok := ParseStatus(string(to)); !ok {
		return false
	}
	if from == to {
		return false
	}
	if !strict {
		return true
	}
	return validNext[from][to]
}
