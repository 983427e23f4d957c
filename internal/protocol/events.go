// Package protocol defines the relay wire protocol: one event type per
// message kind, decoded exhaustively so malformed payloads fail in one
// place instead of leaking duck-typed maps through the engine.
package protocol

import "boardsync/internal/board"

// Kind tags a wire event.
type Kind string

const (
	KindJoin          Kind = "join"
	KindJoinAck       Kind = "join:ack"
	KindElementCreate Kind = "element:create"
	KindElementUpdate Kind = "element:update"
	KindElementDelete Kind = "element:delete"
	KindUserJoined    Kind = "user:joined"
	KindUserLeft      Kind = "user:left"
	KindCursorMove    Kind = "cursor:move"
)

// Event is a decoded wire message.
type Event interface {
	Kind() Kind
}

// Join requests entry to a board session.
type Join struct {
	BoardID     string `json:"boardId"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (*Join) Kind() Kind { return KindJoin }

// JoinAck answers a Join with the board snapshot, or an error. Exactly
// one of Board and Error is set.
type JoinAck struct {
	Board *board.Snapshot `json:"board,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (*JoinAck) Kind() Kind { return KindJoinAck }

// ElementCreate announces a new shape. The shape payload is nested so
// its type field cannot collide with the envelope kind.
type ElementCreate struct {
	Element *board.Shape `json:"element"`
	UserID  string       `json:"userId,omitempty"`
}

func (*ElementCreate) Kind() Kind { return KindElementCreate }

// ElementUpdate carries a partial field set for an existing shape.
type ElementUpdate struct {
	ID      string       `json:"id"`
	Changes *board.Patch `json:"changes"`
	UserID  string       `json:"userId,omitempty"`
}

func (*ElementUpdate) Kind() Kind { return KindElementUpdate }

// ElementDelete removes a shape.
type ElementDelete struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
}

func (*ElementDelete) Kind() Kind { return KindElementDelete }

// UserJoined carries the roster after a participant joins.
type UserJoined struct {
	Participants []board.Participant `json:"participants"`
}

func (*UserJoined) Kind() Kind { return KindUserJoined }

// UserLeft carries the roster after a participant leaves.
type UserLeft struct {
	Participants []board.Participant `json:"participants"`
}

func (*UserLeft) Kind() Kind { return KindUserLeft }

// CursorMove is an ephemeral pointer position update.
type CursorMove struct {
	UserID   string               `json:"userId"`
	Position board.CursorPosition `json:"position"`
	Color    string               `json:"color,omitempty"`
}

func (*CursorMove) Kind() Kind { return KindCursorMove }
