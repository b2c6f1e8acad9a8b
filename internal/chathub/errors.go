package chathub

import (
	"errors"
	"fmt"
)

// Sentinel errors for the realtime core. Handlers and the hub map these onto
// HTTP statuses and message_error events; anything else is a server error.
var (
	ErrUnauthenticated = fmt.Errorf("missing or invalid credential")
	ErrRoomNotFound    = fmt.Errorf("conversation not found")
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrNotParticipant  = fmt.Errorf("user is not a participant of this conversation")
	ErrNotSender       = fmt.Errorf("only the sender can delete a message")
	ErrNotAdmin        = fmt.Errorf("admin rights required")
	ErrNotCreator      = fmt.Errorf("only the creator can delete a group")
	ErrNotGroup        = fmt.Errorf("operation only applies to group conversations")
	ErrGroupFull       = fmt.Errorf("group member limit reached")
	ErrAlreadyMember   = fmt.Errorf("user is already a participant")
)

// errorCode maps a sentinel to the stable code clients branch on.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case isAny(err, ErrRoomNotFound, ErrMessageNotFound):
		return "not_found"
	case isAny(err, ErrNotParticipant, ErrNotSender, ErrNotAdmin, ErrNotCreator):
		return "forbidden"
	case isAny(err, ErrNotGroup, ErrGroupFull, ErrAlreadyMember):
		return "invalid"
	case isAny(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal"
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
