package relay

import (
	"context"
	"errors"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ErrNotConnected is returned by every command when the adapter was built
// without a homeserver. The adapter stays usable for injected events and
// registry work; only the request surface is dead.
var ErrNotConnected = errors.New("no homeserver configured")

// offlineClient backs adapters that run without network access, keeping
// the command surface callable instead of nil.
type offlineClient struct{}

var _ Client = offlineClient{}

func (offlineClient) SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	return nil, ErrNotConnected
}

func (offlineClient) SendReaction(ctx context.Context, roomID id.RoomID, eventID id.EventID, reaction string) (*mautrix.RespSendEvent, error) {
	return nil, ErrNotConnected
}

func (offlineClient) RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error) {
	return nil, ErrNotConnected
}

func (offlineClient) JoinRoom(ctx context.Context, roomIDorAlias string, req *mautrix.ReqJoinRoom) (*mautrix.RespJoinRoom, error) {
	return nil, ErrNotConnected
}

func (offlineClient) Login(ctx context.Context, req *mautrix.ReqLogin) (*mautrix.RespLogin, error) {
	return nil, ErrNotConnected
}

func (offlineClient) RegisterDummy(ctx context.Context, req *mautrix.ReqRegister) (*mautrix.RespRegister, error) {
	return nil, ErrNotConnected
}

func (offlineClient) RegisterAvailable(ctx context.Context, username string) (*mautrix.RespRegisterAvailable, error) {
	return nil, ErrNotConnected
}

func (offlineClient) JoinedRooms(ctx context.Context) (*mautrix.RespJoinedRooms, error) {
	return nil, ErrNotConnected
}

func (offlineClient) PublicRooms(ctx context.Context, req *mautrix.ReqPublicRooms) (*mautrix.RespPublicRooms, error) {
	return nil, ErrNotConnected
}

func (offlineClient) GetProfile(ctx context.Context, userID id.UserID) (*mautrix.RespUserProfile, error) {
	return nil, ErrNotConnected
}

func (offlineClient) GetDisplayName(ctx context.Context, userID id.UserID) (*mautrix.RespUserDisplayName, error) {
	return nil, ErrNotConnected
}

func (offlineClient) SetDisplayName(ctx context.Context, displayName string) error {
	return ErrNotConnected
}

func (offlineClient) Whoami(ctx context.Context) (*mautrix.RespWhoami, error) {
	return nil, ErrNotConnected
}
