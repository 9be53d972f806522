package relay

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Client abstracts the Matrix request surface the adapter issues calls
// against. *mautrix.Client satisfies it; tests substitute a fake so
// command-surface behavior can be checked without a homeserver.
//
// Sync is deliberately absent: the sync loop is wired directly to the
// underlying mautrix client in New, and adapters built around a fake
// client are driven by injected events instead.
type Client interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	SendReaction(ctx context.Context, roomID id.RoomID, eventID id.EventID, reaction string) (*mautrix.RespSendEvent, error)
	RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error)
	JoinRoom(ctx context.Context, roomIDorAlias string, req *mautrix.ReqJoinRoom) (*mautrix.RespJoinRoom, error)

	Login(ctx context.Context, req *mautrix.ReqLogin) (*mautrix.RespLogin, error)
	RegisterDummy(ctx context.Context, req *mautrix.ReqRegister) (*mautrix.RespRegister, error)
	RegisterAvailable(ctx context.Context, username string) (*mautrix.RespRegisterAvailable, error)

	JoinedRooms(ctx context.Context) (*mautrix.RespJoinedRooms, error)
	PublicRooms(ctx context.Context, req *mautrix.ReqPublicRooms) (*mautrix.RespPublicRooms, error)
	GetProfile(ctx context.Context, userID id.UserID) (*mautrix.RespUserProfile, error)
	GetDisplayName(ctx context.Context, userID id.UserID) (*mautrix.RespUserDisplayName, error)
	SetDisplayName(ctx context.Context, displayName string) error
	Whoami(ctx context.Context) (*mautrix.RespWhoami, error)
}

var _ Client = (*mautrix.Client)(nil)
