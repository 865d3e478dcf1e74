package dispatch

import "fmt"

type reasonKind int

const (
	reasonImmediate reasonKind = iota
	reasonStatusChange
	reasonManual
	reasonBulk
)

// FireReason tags which trigger path requested the send. All three delayed
// triggers converge on the same transition; only the payload annotation and
// metrics label differ.
type FireReason struct {
	kind   reasonKind
	status string
}

func ReasonImmediate() FireReason { return FireReason{kind: reasonImmediate} }

func ReasonStatusChange(status string) FireReason {
	return FireReason{kind: reasonStatusChange, status: status}
}

func ReasonManual() FireReason { return FireReason{kind: reasonManual} }
func ReasonBulk() FireReason   { return FireReason{kind: reasonBulk} }

// manual covers both operator paths; they may retry failed records.
func (r FireReason) manual() bool {
	return r.kind == reasonManual || r.kind == reasonBulk
}

func (r FireReason) label() string {
	switch r.kind {
	case reasonImmediate:
		return "immediate"
	case reasonStatusChange:
		return "status_change"
	case reasonManual:
		return "manual"
	case reasonBulk:
		return "bulk"
	}
	return "unknown"
}

func (r FireReason) delayedReason() string {
	switch r.kind {
	case reasonStatusChange:
		return fmt.Sprintf("Order status changed to %s", r.status)
	case reasonManual, reasonBulk:
		return "Manually fired by operator"
	}
	return ""
}
