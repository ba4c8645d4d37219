package ws

import (
	"github.com/google/uuid"

	"github.com/yuchenshi/senko/engine"
)

// Frame types the client may send.
const (
	frameLobbyWatch  = "lobby.watch"
	frameLobbyCreate = "lobby.create"
	frameLobbyJoin   = "lobby.join"
	frameLobbyLeave  = "lobby.leave"
	frameLobbyStart  = "lobby.start"

	frameRoomSubscribe   = "room.subscribe"
	frameRoomUnsubscribe = "room.unsubscribe"
	frameRoomPlay        = "room.play"
	frameRoomDiscard     = "room.discard"
	frameRoomHint        = "room.hint"

	framePing = "ping"
)

// Frame types the server sends.
const (
	frameLobbyAreas = "lobby.areas"

	frameRoomInfo     = "room.info"
	frameRoomState    = "room.state"
	frameRoomTurn     = "room.turn"
	frameRoomCards    = "room.cards"
	frameRoomDiscards = "room.discards"
	frameRoomCopies   = "room.copies"
	frameRoomHands    = "room.hands"
	frameRoomEvents   = "room.events"
	frameRoomOnline   = "room.online"

	frameAck   = "ack"
	frameError = "error"
	framePong  = "pong"
)

// inFrame is the client-to-server envelope. Fields beyond Type are
// meaningful only for the frame types that use them.
type inFrame struct {
	Type   string    `json:"type"`
	AreaID uuid.UUID `json:"areaId,omitempty"`
	RoomID uuid.UUID `json:"roomId,omitempty"`

	// lobby.create
	Name   string        `json:"name,omitempty"`
	Preset engine.Preset `json:"preset,omitempty"`

	// room.play, room.discard
	CardID engine.CardID `json:"cardId,omitempty"`

	// room.hint
	Target    engine.PlayerID  `json:"target,omitempty"`
	HintField engine.HintField `json:"hintField,omitempty"`
	HintValue int              `json:"hintValue,omitempty"`
}

// outFrame is the server-to-client envelope.
type outFrame struct {
	Type   string    `json:"type"`
	RoomID uuid.UUID `json:"roomId,omitempty"`

	// ack and error carry the frame type they answer.
	Op     string `json:"op,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`

	Data any `json:"data,omitempty"`
}

// roomInfo is the one-shot payload sent when a subscription opens.
type roomInfo struct {
	Room        engine.Room     `json:"room"`
	PlayerID    engine.PlayerID `json:"playerId"`
	Participant bool            `json:"participant"`
}
