package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reason is a rejection code reported back to the originating actor only.
type Reason string

const (
	ReasonOverBudget      Reason = "OVER_BUDGET"
	ReasonInvalidAmount   Reason = "INVALID_AMOUNT"
	ReasonNotStarted      Reason = "NOT_STARTED"
	ReasonNotRunning      Reason = "NOT_RUNNING"
	ReasonNoSide          Reason = "NO_SIDE"
	ReasonSideMismatch    Reason = "SIDE_MISMATCH"
	ReasonAlreadyBid      Reason = "ALREADY_BID"
	ReasonHostOnly        Reason = "HOST_ONLY"
	ReasonParticipantOnly Reason = "PARTICIPANT_ONLY"
	ReasonUnknownAction   Reason = "UNKNOWN_ACTION"
	ReasonWrongMechanism  Reason = "WRONG_MECHANISM"
	ReasonRoomClosed      Reason = "ROOM_CLOSED"
)

// Rejection is a non-fatal, caller-side violation. It never changes room state.
type Rejection struct {
	Code    Reason         `json:"reason"`
	Context map[string]any `json:"context,omitempty"`
}

// Reject builds a rejection from alternating key/value context pairs.
func Reject(code Reason, kv ...any) *Rejection {
	r := &Rejection{Code: code}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if r.Context == nil {
			r.Context = make(map[string]any, len(kv)/2)
		}
		r.Context[key] = kv[i+1]
	}
	return r
}

func (r *Rejection) Error() string {
	if len(r.Context) == 0 {
		return string(r.Code)
	}
	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r.Context[k]))
	}
	return string(r.Code) + " (" + strings.Join(parts, " ") + ")"
}

// AsRejection unwraps err into a rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsReason reports whether err is a rejection with the given code.
func IsReason(err error, code Reason) bool {
	r, ok := AsRejection(err)
	return ok && r.Code == code
}
