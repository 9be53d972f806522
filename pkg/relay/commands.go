package relay

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/openactor/matrix-relay/pkg/actor"
	"github.com/openactor/matrix-relay/pkg/emitter"
)

// Envelope wraps a homeserver send acknowledgment.
type Envelope struct {
	EventID id.EventID
	RoomID  id.RoomID
}

// Send posts a text message. An empty room targets the coordinator.
// External errors propagate to the caller.
func (a *Adapter) Send(ctx context.Context, body string, room id.RoomID) (*Envelope, error) {
	if body == "" {
		return nil, &ValidationError{Field: "message"}
	}
	if room == "" {
		room = id.RoomID(a.cfg.Coordinator)
	}
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    body,
	}
	resp, err := a.client.SendMessageEvent(ctx, room, event.EventMessage, content, mautrix.ReqSendEvent{
		TransactionID: xid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &Envelope{EventID: resp.EventID, RoomID: room}, nil
}

// React posts an annotation relation on a previously observed event. The
// target is resolved through the timeline index; an unknown event ID is
// ErrEventNotFound.
func (a *Adapter) React(ctx context.Context, eventID id.EventID, emoji string) (*Envelope, error) {
	if emoji == "" {
		return nil, &ValidationError{Field: "emoji"}
	}
	room, ok := a.index.Lookup(eventID)
	if !ok {
		return nil, fmt.Errorf("react to %s: %w", eventID, ErrEventNotFound)
	}
	resp, err := a.client.SendReaction(ctx, room, eventID, emoji)
	if err != nil {
		return nil, fmt.Errorf("send reaction: %w", err)
	}
	return &Envelope{EventID: resp.EventID, RoomID: room}, nil
}

// Redact removes a previously observed event, resolving its room through
// the timeline index.
func (a *Adapter) Redact(ctx context.Context, eventID id.EventID, reason string) (*Envelope, error) {
	room, ok := a.index.Lookup(eventID)
	if !ok {
		return nil, fmt.Errorf("redact %s: %w", eventID, ErrEventNotFound)
	}
	resp, err := a.client.RedactEvent(ctx, room, eventID, mautrix.ReqRedact{Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("redact event: %w", err)
	}
	return &Envelope{EventID: resp.EventID, RoomID: room}, nil
}

// Register creates an account on the homeserver. Both fields are
// required. Registration is best-effort: the account may already exist,
// so an external failure is logged, surfaced on the error stream, and
// swallowed with a nil result.
func (a *Adapter) Register(ctx context.Context, username, password string) (*mautrix.RespRegister, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password"}
	}
	resp, err := a.client.RegisterDummy(ctx, &mautrix.ReqRegister{
		Username:                 username,
		Password:                 password,
		InitialDeviceDisplayName: a.cfg.Alias,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("username", username).Msg("Registration failed, continuing")
		a.events.Emit(emitter.Error, ErrorEvent{Op: "register", Err: err})
		return nil, nil
	}
	return resp, nil
}

// Login authenticates with the homeserver. Thin pass-through: errors
// propagate, credentials are stored on the client on success.
func (a *Adapter) Login(ctx context.Context, username, password string) (*mautrix.RespLogin, error) {
	return a.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: username,
		},
		Password:                 password,
		InitialDeviceDisplayName: a.cfg.Alias,
		StoreCredentials:         true,
	})
}

// ActorRegistration is the input to RegisterActor. Pubkey is required;
// the remaining fields only matter when Connect is set.
type ActorRegistration struct {
	Pubkey   string
	Username string
	Password string
	// Connect runs the best-effort connect sequence after derivation:
	// availability check, register, login, coordinator join.
	Connect bool
}

// StepOutcome records one step of the connect sequence.
type StepOutcome struct {
	Step    string
	Err     error
	Skipped bool
}

func (o StepOutcome) OK() bool {
	return o.Err == nil && !o.Skipped
}

// ConnectReport is the structured outcome of RegisterActor. Each
// attempted step is recorded whether it succeeded or not; a failing step
// never blocks the next one.
type ConnectReport struct {
	Actor actor.Actor
	Steps []StepOutcome
}

func (r *ConnectReport) add(step string, err error) {
	r.Steps = append(r.Steps, StepOutcome{Step: step, Err: err})
}

func (r *ConnectReport) skip(step string) {
	r.Steps = append(r.Steps, StepOutcome{Step: step, Skipped: true})
}

// Failed returns the steps that were attempted and failed.
func (r *ConnectReport) Failed() []StepOutcome {
	var failed []StepOutcome
	for _, step := range r.Steps {
		if step.Err != nil {
			failed = append(failed, step)
		}
	}
	return failed
}

// RegisterActor derives the canonical actor for a public key and, when
// requested, runs the best-effort connect sequence. Each step's failure
// is logged, surfaced on the error stream, and recorded in the report;
// the sequence always runs to the end.
//
// Registration failure is not classified further: "already registered"
// and "wrong password" are indistinguishable here, and the login step's
// own outcome is the caller's signal either way.
func (a *Adapter) RegisterActor(ctx context.Context, reg ActorRegistration) (*ConnectReport, error) {
	if reg.Pubkey == "" {
		return nil, &ValidationError{Field: "pubkey"}
	}
	report := &ConnectReport{Actor: a.registry.EnsureFromPubkey(reg.Pubkey)}
	if !reg.Connect {
		return report, nil
	}

	available := false
	avail, err := a.client.RegisterAvailable(ctx, reg.Username)
	report.add("availability", err)
	if err != nil {
		a.stepFailed("availability", err)
	} else {
		available = avail.Available
	}

	if available {
		_, err = a.client.RegisterDummy(ctx, &mautrix.ReqRegister{
			Username:                 reg.Username,
			Password:                 reg.Password,
			InitialDeviceDisplayName: a.cfg.Alias,
		})
		report.add("register", err)
		if err != nil {
			a.stepFailed("register", err)
		}
	} else {
		report.skip("register")
	}

	_, err = a.Login(ctx, reg.Username, reg.Password)
	report.add("login", err)
	if err != nil {
		a.stepFailed("login", err)
	}

	joinCtx, cancel := a.requestContext()
	defer cancel()
	resp, err := a.client.JoinRoom(joinCtx, a.cfg.Coordinator, nil)
	report.add("join", err)
	if err != nil {
		a.stepFailed("join", err)
	} else {
		a.trackChannel(resp.RoomID)
	}
	return report, nil
}

func (a *Adapter) stepFailed(step string, err error) {
	a.log.Warn().Err(err).Str("step", step).Msg("Connect step failed, continuing")
	a.events.Emit(emitter.Error, ErrorEvent{Op: step, Err: err})
}

// SetDisplayName updates the relay's own profile display name.
func (a *Adapter) SetDisplayName(ctx context.Context, name string) error {
	if name == "" {
		return &ValidationError{Field: "name"}
	}
	return a.client.SetDisplayName(ctx, name)
}

// DisplayName fetches a user's display name.
func (a *Adapter) DisplayName(ctx context.Context, userID id.UserID) (string, error) {
	resp, err := a.client.GetDisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	return resp.DisplayName, nil
}

// Profile fetches a user's full profile.
func (a *Adapter) Profile(ctx context.Context, userID id.UserID) (*mautrix.RespUserProfile, error) {
	return a.client.GetProfile(ctx, userID)
}

// JoinedRooms lists the rooms the relay is currently joined to.
func (a *Adapter) JoinedRooms(ctx context.Context) ([]id.RoomID, error) {
	resp, err := a.client.JoinedRooms(ctx)
	if err != nil {
		return nil, err
	}
	return resp.JoinedRooms, nil
}

// PublicRooms lists the homeserver's public room directory.
func (a *Adapter) PublicRooms(ctx context.Context, limit int) (*mautrix.RespPublicRooms, error) {
	return a.client.PublicRooms(ctx, &mautrix.ReqPublicRooms{Limit: limit})
}

// Whoami asks the homeserver which account the current token belongs to.
func (a *Adapter) Whoami(ctx context.Context) (id.UserID, error) {
	resp, err := a.client.Whoami(ctx)
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}
