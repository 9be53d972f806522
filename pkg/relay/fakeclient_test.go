package relay

import (
	"context"
	"fmt"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type sentMessage struct {
	RoomID  id.RoomID
	Type    event.Type
	Content any
}

type sentReaction struct {
	RoomID  id.RoomID
	EventID id.EventID
	Key     string
}

// fakeClient records every request the adapter issues. Error fields make
// individual operations fail on demand.
type fakeClient struct {
	mu sync.Mutex

	sends      []sentMessage
	reactions  []sentReaction
	redactions []id.EventID
	joins      []string

	registerCalls int
	loginCalls    int

	sendErr     error
	joinErr     error
	registerErr error
	loginErr    error
	availErr    error

	available bool
	nextEvent int
}

var _ Client = (*fakeClient)(nil)

func (f *fakeClient) eventID() id.EventID {
	f.nextEvent++
	return id.EventID(fmt.Sprintf("$fake-%d", f.nextEvent))
}

func (f *fakeClient) SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sends = append(f.sends, sentMessage{RoomID: roomID, Type: eventType, Content: contentJSON})
	return &mautrix.RespSendEvent{EventID: f.eventID()}, nil
}

func (f *fakeClient) SendReaction(ctx context.Context, roomID id.RoomID, eventID id.EventID, reaction string) (*mautrix.RespSendEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.reactions = append(f.reactions, sentReaction{RoomID: roomID, EventID: eventID, Key: reaction})
	return &mautrix.RespSendEvent{EventID: f.eventID()}, nil
}

func (f *fakeClient) RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.redactions = append(f.redactions, eventID)
	return &mautrix.RespSendEvent{EventID: f.eventID()}, nil
}

func (f *fakeClient) JoinRoom(ctx context.Context, roomIDorAlias string, req *mautrix.ReqJoinRoom) (*mautrix.RespJoinRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	f.joins = append(f.joins, roomIDorAlias)
	return &mautrix.RespJoinRoom{RoomID: id.RoomID(roomIDorAlias)}, nil
}

func (f *fakeClient) Login(ctx context.Context, req *mautrix.ReqLogin) (*mautrix.RespLogin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &mautrix.RespLogin{AccessToken: "syt_fake"}, nil
}

func (f *fakeClient) RegisterDummy(ctx context.Context, req *mautrix.ReqRegister) (*mautrix.RespRegister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &mautrix.RespRegister{UserID: id.UserID("@" + req.Username + ":example.org")}, nil
}

func (f *fakeClient) RegisterAvailable(ctx context.Context, username string) (*mautrix.RespRegisterAvailable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.availErr != nil {
		return nil, f.availErr
	}
	return &mautrix.RespRegisterAvailable{Available: f.available}, nil
}

func (f *fakeClient) JoinedRooms(ctx context.Context) (*mautrix.RespJoinedRooms, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]id.RoomID, 0, len(f.joins))
	for _, room := range f.joins {
		rooms = append(rooms, id.RoomID(room))
	}
	return &mautrix.RespJoinedRooms{JoinedRooms: rooms}, nil
}

func (f *fakeClient) PublicRooms(ctx context.Context, req *mautrix.ReqPublicRooms) (*mautrix.RespPublicRooms, error) {
	return &mautrix.RespPublicRooms{}, nil
}

func (f *fakeClient) GetProfile(ctx context.Context, userID id.UserID) (*mautrix.RespUserProfile, error) {
	return &mautrix.RespUserProfile{DisplayName: string(userID)}, nil
}

func (f *fakeClient) GetDisplayName(ctx context.Context, userID id.UserID) (*mautrix.RespUserDisplayName, error) {
	return &mautrix.RespUserDisplayName{DisplayName: string(userID)}, nil
}

func (f *fakeClient) SetDisplayName(ctx context.Context, displayName string) error {
	return nil
}

func (f *fakeClient) Whoami(ctx context.Context) (*mautrix.RespWhoami, error) {
	return &mautrix.RespWhoami{UserID: "@relay:example.org"}, nil
}

func (f *fakeClient) joinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.joins)
}
