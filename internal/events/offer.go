package events

// Offer attempts a non-blocking send and reports whether the value was queued.
func Offer[T any](ch chan<- T, value T) bool {
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
