package protocol

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Encode marshals an event into its wire form with the kind tag.
func Encode(ev Event) ([]byte, error) {
	type tag struct {
		Type Kind `json:"type"`
	}

	var wrap any
	switch e := ev.(type) {
	case *Join:
		wrap = struct {
			tag
			*Join
		}{tag{KindJoin}, e}
	case *JoinAck:
		wrap = struct {
			tag
			*JoinAck
		}{tag{KindJoinAck}, e}
	case *ElementCreate:
		wrap = struct {
			tag
			*ElementCreate
		}{tag{KindElementCreate}, e}
	case *ElementUpdate:
		wrap = struct {
			tag
			*ElementUpdate
		}{tag{KindElementUpdate}, e}
	case *ElementDelete:
		wrap = struct {
			tag
			*ElementDelete
		}{tag{KindElementDelete}, e}
	case *UserJoined:
		wrap = struct {
			tag
			*UserJoined
		}{tag{KindUserJoined}, e}
	case *UserLeft:
		wrap = struct {
			tag
			*UserLeft
		}{tag{KindUserLeft}, e}
	case *CursorMove:
		wrap = struct {
			tag
			*CursorMove
		}{tag{KindCursorMove}, e}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}

	raw, err := json.Marshal(wrap)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	return raw, nil
}

// Decode unmarshals a wire message into its typed event. Unknown kinds
// and malformed payloads return an error; the payload is never partially
// applied.
func Decode(raw []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var ev Event
	switch head.Type {
	case KindJoin:
		ev = &Join{}
	case KindJoinAck:
		ev = &JoinAck{}
	case KindElementCreate:
		ev = &ElementCreate{}
	case KindElementUpdate:
		ev = &ElementUpdate{}
	case KindElementDelete:
		ev = &ElementDelete{}
	case KindUserJoined:
		ev = &UserJoined{}
	case KindUserLeft:
		ev = &UserLeft{}
	case KindCursorMove:
		ev = &CursorMove{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}

	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", head.Type, err)
	}
	return ev, nil
}
