package protocol

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"boardsync/internal/board"
)

func TestEncodeCarriesKindTag(t *testing.T) {
	raw, err := Encode(&Join{BoardID: "b1", UserID: "u1", DisplayName: "Ada"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, "join", m["type"])
	require.Equal(t, "b1", m["boardId"])
}

func TestRoundTripEveryKind(t *testing.T) {
	x := 50.0
	events := []Event{
		&Join{BoardID: "b1", UserID: "u1", DisplayName: "Ada"},
		&JoinAck{Board: &board.Snapshot{ID: "b1", Title: "demo"}},
		&JoinAck{Error: "board full"},
		&ElementCreate{
			Element: &board.Shape{ID: "s1", Type: board.ShapeRect, X: 1, Y: 2, Opacity: 1, OrderIndex: "V"},
			UserID:  "u1",
		},
		&ElementUpdate{ID: "s1", Changes: &board.Patch{X: &x}, UserID: "u1"},
		&ElementDelete{ID: "s1", UserID: "u1"},
		&UserJoined{Participants: []board.Participant{{UserID: "u1", Color: "#abc"}}},
		&UserLeft{Participants: []board.Participant{}},
		&CursorMove{UserID: "u1", Position: board.CursorPosition{X: 3, Y: 4}, Color: "#abc"},
	}

	for _, ev := range events {
		raw, err := Encode(ev)
		require.NoError(t, err, "encode %s", ev.Kind())

		got, err := Decode(raw)
		require.NoError(t, err, "decode %s", ev.Kind())
		require.Equal(t, ev.Kind(), got.Kind())
		require.Equal(t, ev, got, "round trip %s", ev.Kind())
	}
}

func TestDecodeShapeTypeDoesNotCollideWithEnvelope(t *testing.T) {
	raw, err := Encode(&ElementCreate{
		Element: &board.Shape{ID: "s1", Type: board.ShapeDraw, Opacity: 1, OrderIndex: "V"},
	})
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	create := got.(*ElementCreate)
	require.Equal(t, board.ShapeDraw, create.Element.Type)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"type":"element:teleport"}`))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`{"type":"element:update","changes":"nope"}`))
	require.Error(t, err)
}
