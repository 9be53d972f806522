// Package relay adapts a Matrix homeserver connection into a local event
// stream. All protocol work (transport, sync, room state, E2EE) is
// delegated to mautrix; the adapter translates sync callbacks into typed
// inbound events, resolves senders through the actor registry, and
// re-emits normalized activity on the emitter.
package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/openactor/matrix-relay/pkg/actor"
	"github.com/openactor/matrix-relay/pkg/emitter"
)

// Status is the adapter's connection lifecycle state.
type Status string

const (
	StatusReady    Status = "READY"
	StatusStarting Status = "STARTING"
	StatusStarted  Status = "STARTED"
	StatusStopping Status = "STOPPING"
	StatusStopped  Status = "STOPPED"
)

// Sync status strings mirror the wire client's lifecycle vocabulary.
// Prepared is the only status accepted during startup; anything else is a
// protocol violation.
const (
	SyncStatusPrepared = "PREPARED"
	SyncStatusError    = "ERROR"
)

const (
	inboundQueueSize = 256
	recentMessageCap = 128
)

// Adapter owns one Matrix connection, the actor registry derived from it,
// and the local event stream consumers subscribe to.
type Adapter struct {
	cfg    Config
	log    zerolog.Logger
	client Client
	mx     *mautrix.Client
	crypto interface{ Close() error }

	events   *emitter.Emitter
	registry *actor.Registry
	index    *EventIndex

	// FatalHandler receives protocol violations (unexpected sync status,
	// coordinator join failure during startup). The default terminates
	// the process; override before Start to intercept.
	FatalHandler func(error)

	inbound    chan inboundEvent
	done       chan struct{}
	syncCancel context.CancelFunc
	synced     atomic.Bool
	prepOnce   sync.Once
	readyOnce  sync.Once

	mu       sync.Mutex
	status   Status
	channels map[id.RoomID]struct{}
	recent   []MessageRecord
}

// New builds an adapter backed by a real mautrix client and wires the
// sync callbacks into the inbound queue.
func New(cfg Config, log zerolog.Logger) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var mx *mautrix.Client
	var client Client = offlineClient{}
	if cfg.Homeserver != "" {
		var err error
		mx, err = mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.Handle), cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("create matrix client: %w", err)
		}
		mx.Log = log.With().Str("component", "mautrix").Logger()
		client = mx
	}
	a := newAdapter(cfg, log, client, mx)
	if mx != nil {
		a.wireSyncer(mx)
	}
	return a, nil
}

// NewWithClient builds an adapter around an arbitrary Client. No sync
// loop is available; inbound events must be injected by the host.
func NewWithClient(cfg Config, log zerolog.Logger, client Client) *Adapter {
	cfg.ApplyDefaults()
	if client == nil {
		client = offlineClient{}
	}
	return newAdapter(cfg, log, client, nil)
}

func newAdapter(cfg Config, log zerolog.Logger, client Client, mx *mautrix.Client) *Adapter {
	a := &Adapter{
		cfg:      cfg,
		log:      log,
		client:   client,
		mx:       mx,
		events:   emitter.New(),
		registry: actor.NewRegistry(),
		index:    NewEventIndex(),
		inbound:  make(chan inboundEvent, inboundQueueSize),
		done:     make(chan struct{}),
		status:   StatusReady,
		channels: make(map[id.RoomID]struct{}),
	}
	a.FatalHandler = func(err error) {
		a.log.Fatal().Err(err).Msg("Connection lifecycle violation")
	}
	return a
}

// relaySyncer adjusts DefaultSyncer in two ways: a sync request failure
// aborts the sync loop instead of retrying (the resulting error surfaces
// as an unexpected sync status, which is fatal), and the synced marker
// only flips after a response's events have all been dispatched, so the
// initial batch is flagged as backfill and the prepared signal trails it.
type relaySyncer struct {
	*mautrix.DefaultSyncer
	adapter *Adapter
}

func (s *relaySyncer) OnFailedSync(res *mautrix.RespSync, err error) (time.Duration, error) {
	return 0, err
}

func (s *relaySyncer) ProcessResponse(ctx context.Context, resp *mautrix.RespSync, since string) error {
	if err := s.DefaultSyncer.ProcessResponse(ctx, resp, since); err != nil {
		return err
	}
	s.adapter.synced.Store(true)
	s.adapter.prepOnce.Do(func() {
		s.adapter.enqueue(syncStatusEvent{Status: SyncStatusPrepared})
	})
	return nil
}

func newRelaySyncer(a *Adapter) *relaySyncer {
	syncer := &relaySyncer{DefaultSyncer: mautrix.NewDefaultSyncer(), adapter: a}
	syncer.FilterJSON = &mautrix.Filter{
		Room: &mautrix.RoomFilter{
			Timeline: &mautrix.FilterPart{Limit: a.cfg.Constraints.Sync.Limit},
		},
	}
	timelineTypes := []event.Type{
		event.EventMessage,
		event.EventEncrypted,
		event.EventSticker,
		event.EventReaction,
		event.EventRedaction,
	}
	for _, evtType := range timelineTypes {
		syncer.OnEventType(evtType, func(ctx context.Context, evt *event.Event) {
			a.enqueue(timelineEvent{Evt: evt, Backfill: !a.synced.Load()})
		})
	}
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		a.enqueue(membershipEvent{Evt: evt})
	})
	return syncer
}

func (a *Adapter) wireSyncer(mx *mautrix.Client) {
	mx.Syncer = newRelaySyncer(a)
}

// Events exposes the local event stream for handler registration.
func (a *Adapter) Events() *emitter.Emitter {
	return a.events
}

// Registry exposes the adapter-owned actor registry.
func (a *Adapter) Registry() *actor.Registry {
	return a.registry
}

func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Adapter) setStatus(status Status) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
	a.events.Emit(emitter.Log, fmt.Sprintf("adapter status: %s", status))
}

// Start transitions READY → STARTING, launches the dispatch loop, and —
// when connect is enabled — starts the homeserver sync. With connect
// disabled the adapter reports prepared immediately and only processes
// injected events.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.status != StatusReady {
		status := a.status
		a.mu.Unlock()
		return fmt.Errorf("start: adapter is %s, expected %s", status, StatusReady)
	}
	a.status = StatusStarting
	a.mu.Unlock()

	go a.dispatchLoop()

	if !a.cfg.Connect {
		a.enqueue(syncStatusEvent{Status: SyncStatusPrepared})
		return nil
	}
	if a.mx == nil {
		return fmt.Errorf("start: network startup requires a homeserver-backed adapter")
	}
	if a.mx.AccessToken == "" {
		return fmt.Errorf("start: no access token; set token in config or log in first")
	}
	if err := a.initCrypto(ctx); err != nil {
		return fmt.Errorf("init crypto: %w", err)
	}
	syncCtx, cancel := context.WithCancel(ctx)
	a.syncCancel = cancel
	go a.syncLoop(syncCtx)
	a.log.Info().
		Str("homeserver", a.cfg.Homeserver).
		Str("handle", a.cfg.Handle).
		Msg("Adapter starting")
	return nil
}

func (a *Adapter) syncLoop(ctx context.Context) {
	err := a.mx.SyncWithContext(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	a.enqueue(syncStatusEvent{Status: SyncStatusError, Err: err})
}

// Stop tears the adapter down. Terminal: a stopped adapter cannot be
// restarted.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.status == StatusStopping || a.status == StatusStopped {
		a.mu.Unlock()
		return
	}
	a.status = StatusStopping
	a.mu.Unlock()
	a.events.Emit(emitter.Log, fmt.Sprintf("adapter status: %s", StatusStopping))

	if a.syncCancel != nil {
		a.syncCancel()
	}
	if a.mx != nil {
		a.mx.StopSync()
	}
	if a.crypto != nil {
		if err := a.crypto.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close crypto store")
		}
	}
	close(a.done)
	a.setStatus(StatusStopped)
}

func (a *Adapter) enqueue(ev inboundEvent) {
	select {
	case a.inbound <- ev:
	case <-a.done:
	}
}

func (a *Adapter) dispatchLoop() {
	for {
		select {
		case ev := <-a.inbound:
			a.dispatch(ev)
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) dispatch(ev inboundEvent) {
	switch ev := ev.(type) {
	case syncStatusEvent:
		a.handleSyncStatus(ev)
	case timelineEvent:
		a.handleTimeline(ev)
	case membershipEvent:
		a.handleMembership(ev)
	}
}

func (a *Adapter) handleSyncStatus(ev syncStatusEvent) {
	if ev.Status != SyncStatusPrepared {
		err := &SyncViolationError{Status: ev.Status, Err: ev.Err}
		a.events.Emit(emitter.Error, ErrorEvent{Op: "sync", Err: err})
		a.FatalHandler(err)
		return
	}
	if a.Status() != StatusStarting {
		return
	}
	if a.cfg.Connect {
		if err := a.joinCoordinator(); err != nil {
			a.events.Emit(emitter.Error, ErrorEvent{Op: "join-coordinator", Err: err})
			a.FatalHandler(fmt.Errorf("join coordinator %s: %w", a.cfg.Coordinator, err))
			return
		}
	}
	a.setStatus(StatusStarted)
	a.readyOnce.Do(func() {
		a.events.Emit(emitter.Prepared, ev.Status)
		a.events.Emit(emitter.Ready, ReadyEvent{
			Handle:      a.cfg.Handle,
			Coordinator: a.cfg.Coordinator,
		})
	})
}

func (a *Adapter) joinCoordinator() error {
	ctx, cancel := a.requestContext()
	defer cancel()
	resp, err := a.client.JoinRoom(ctx, a.cfg.Coordinator, nil)
	if err != nil {
		return err
	}
	a.trackChannel(resp.RoomID)
	a.log.Info().Str("room_id", resp.RoomID.String()).Msg("Joined coordinator room")
	return nil
}

func (a *Adapter) handleTimeline(ev timelineEvent) {
	evt := ev.Evt
	a.index.Record(evt.ID, evt.RoomID)
	switch evt.Type {
	case event.EventMessage:
		a.relayMessage(evt, ev.Backfill)
	case event.EventEncrypted:
		if a.cfg.Encryption.Enabled {
			// The crypto helper redelivers the decrypted payload as a
			// plain message event.
			return
		}
		a.warnUnhandled(evt, "encryption is disabled")
	default:
		a.warnUnhandled(evt, "no handler for this event type")
	}
}

func (a *Adapter) relayMessage(evt *event.Event, backfill bool) {
	content := evt.Content.AsMessage()
	if content == nil {
		a.warnUnhandled(evt, "unparseable message content")
		return
	}
	act := a.registry.EnsureUser(evt.Sender)
	record := MessageRecord{
		EventID:   evt.ID,
		RoomID:    evt.RoomID,
		Sender:    evt.Sender,
		ActorID:   act.ID,
		Body:      content.Body,
		Timestamp: time.UnixMilli(evt.Timestamp),
		Backfill:  backfill,
	}
	a.trackMessage(record)
	a.events.Emit(emitter.Message, record)
	a.events.Emit(emitter.Activity, ActivityEvent{
		Actor: act.ID,
		Object: ActivityObject{
			ID:      string(evt.ID),
			Content: content.Body,
		},
		Target: string(evt.RoomID),
	})
}

func (a *Adapter) warnUnhandled(evt *event.Event, reason string) {
	warning := WarningEvent{Type: evt.Type, RoomID: evt.RoomID, Reason: reason}
	a.log.Debug().
		Str("event_type", evt.Type.String()).
		Str("room_id", evt.RoomID.String()).
		Msg("Unhandled timeline event type")
	a.events.Emit(emitter.Warning, warning)
}

func (a *Adapter) handleMembership(ev membershipEvent) {
	evt := ev.Evt
	content := evt.Content.AsMember()
	if content == nil {
		return
	}
	a.registry.EnsureUser(evt.Sender)
	if evt.GetStateKey() != a.cfg.Handle {
		return
	}
	switch content.Membership {
	case event.MembershipInvite:
		a.handleInvite(evt)
	case event.MembershipJoin:
		a.trackChannel(evt.RoomID)
	case event.MembershipLeave, event.MembershipBan:
		a.forgetChannel(evt.RoomID)
	}
}

func (a *Adapter) handleInvite(evt *event.Event) {
	if !a.cfg.Autojoin {
		a.log.Info().
			Str("room_id", evt.RoomID.String()).
			Str("inviter", evt.Sender.String()).
			Msg("Ignoring invite, autojoin is disabled")
		return
	}
	ctx, cancel := a.requestContext()
	defer cancel()
	resp, err := a.client.JoinRoom(ctx, string(evt.RoomID), nil)
	if err != nil {
		a.log.Warn().Err(err).Str("room_id", evt.RoomID.String()).Msg("Failed to join room on invite")
		a.events.Emit(emitter.Error, ErrorEvent{Op: "autojoin", Err: err})
		return
	}
	a.trackChannel(resp.RoomID)
	a.events.Emit(emitter.Log, fmt.Sprintf("joined %s on invite from %s", evt.RoomID, evt.Sender))
}

func (a *Adapter) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
}

func (a *Adapter) trackChannel(roomID id.RoomID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[roomID] = struct{}{}
}

func (a *Adapter) forgetChannel(roomID id.RoomID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.channels, roomID)
}

func (a *Adapter) trackMessage(record MessageRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recent = append(a.recent, record)
	if len(a.recent) > recentMessageCap {
		a.recent = a.recent[len(a.recent)-recentMessageCap:]
	}
}

// Snapshot is a point-in-time copy of the adapter's in-memory state.
type Snapshot struct {
	Status   Status
	Channels []id.RoomID
	Messages []MessageRecord
	Actors   int
}

func (a *Adapter) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := Snapshot{
		Status:   a.status,
		Channels: make([]id.RoomID, 0, len(a.channels)),
		Messages: append([]MessageRecord(nil), a.recent...),
		Actors:   a.registry.Len(),
	}
	for roomID := range a.channels {
		snap.Channels = append(snap.Channels, roomID)
	}
	return snap
}
