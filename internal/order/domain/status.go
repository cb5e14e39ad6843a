package domain

import "strings"

type PaymentState string

const (
	StatePending   PaymentState = "PENDING"
	StatePaid      PaymentState = "PAID"
	StateFailed    PaymentState = "FAILED"
	StateCancelled PaymentState = "CANCELLED"
)

var validNext = map[PaymentState]map[PaymentState]bool{
	StatePending:   {StatePaid: true, StateFailed: true, StateCancelled: true},
	StatePaid:      {},
	StateFailed:    {},
	StateCancelled: {},
}

// CanTransition: hanya PENDING yang boleh berpindah state.
func CanTransition(from, to PaymentState) bool {
	return validNext[from][to]
}

func ParsePaymentState(s string) (PaymentState, bool) {
	st := PaymentState(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := validNext[st]
	return st, ok
}
