package relay

import (
	"context"
	"errors"
	"testing"

	"maunium.net/go/mautrix/event"

	"github.com/openactor/matrix-relay/pkg/emitter"
)

func TestSendDefaultsToCoordinator(t *testing.T) {
	a, fake := testAdapter(testConfig())
	env, err := a.Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if env.RoomID != "!coordinator:example.org" {
		t.Errorf("send room = %q, want coordinator", env.RoomID)
	}
	if env.EventID == "" {
		t.Error("send envelope has no event ID")
	}
	if len(fake.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(fake.sends))
	}
	content := fake.sends[0].Content.(*event.MessageEventContent)
	if content.Body != "hello" || content.MsgType != event.MsgText {
		t.Errorf("sent content = %+v", content)
	}
}

func TestSendToExplicitRoom(t *testing.T) {
	a, fake := testAdapter(testConfig())
	if _, err := a.Send(context.Background(), "hi", "!other:example.org"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if fake.sends[0].RoomID != "!other:example.org" {
		t.Errorf("send room = %q, want !other:example.org", fake.sends[0].RoomID)
	}
}

func TestSendEmptyMessage(t *testing.T) {
	a, fake := testAdapter(testConfig())
	_, err := a.Send(context.Background(), "", "")
	if !IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if len(fake.sends) != 0 {
		t.Error("external call made despite validation failure")
	}
}

func TestReactResolvesThroughIndex(t *testing.T) {
	a, fake := testAdapter(testConfig())
	a.handleTimeline(timelineEvent{Evt: messageEvent("$target", "!room:example.org", "@u1:example.org", "react to me")})

	env, err := a.React(context.Background(), "$target", "👍")
	if err != nil {
		t.Fatalf("React failed: %v", err)
	}
	if env.RoomID != "!room:example.org" {
		t.Errorf("reaction room = %q, want !room:example.org", env.RoomID)
	}
	if len(fake.reactions) != 1 || fake.reactions[0].EventID != "$target" || fake.reactions[0].Key != "👍" {
		t.Errorf("reactions = %+v", fake.reactions)
	}
}

func TestReactUnknownEvent(t *testing.T) {
	a, fake := testAdapter(testConfig())
	_, err := a.React(context.Background(), "$missing", "👍")
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("error = %v, want ErrEventNotFound", err)
	}
	if len(fake.reactions) != 0 {
		t.Error("reaction sent for unknown event")
	}
}

func TestRedactResolvesThroughIndex(t *testing.T) {
	a, fake := testAdapter(testConfig())
	a.handleTimeline(timelineEvent{Evt: messageEvent("$target", "!room:example.org", "@u1:example.org", "redact me")})

	if _, err := a.Redact(context.Background(), "$target", "cleanup"); err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if len(fake.redactions) != 1 || fake.redactions[0] != "$target" {
		t.Errorf("redactions = %+v", fake.redactions)
	}
}

func TestRedactUnknownEvent(t *testing.T) {
	a, _ := testAdapter(testConfig())
	_, err := a.Redact(context.Background(), "$missing", "")
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("error = %v, want ErrEventNotFound", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a, fake := testAdapter(testConfig())
	for _, tc := range []struct {
		name               string
		username, password string
	}{
		{"empty username", "", "hunter2"},
		{"empty password", "relay", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Register(context.Background(), tc.username, tc.password)
			if !IsValidationError(err) {
				t.Fatalf("error = %v, want validation error", err)
			}
			if fake.registerCalls != 0 {
				t.Error("external registration attempted despite validation failure")
			}
		})
	}
}

func TestRegisterSwallowsExternalFailure(t *testing.T) {
	a, fake := testAdapter(testConfig())
	fake.registerErr = errors.New("M_USER_IN_USE")
	var errEvents []ErrorEvent
	a.Events().On(emitter.Error, func(payload any) {
		errEvents = append(errEvents, payload.(ErrorEvent))
	})

	resp, err := a.Register(context.Background(), "relay", "hunter2")
	if err != nil {
		t.Fatalf("best-effort registration propagated error: %v", err)
	}
	if resp != nil {
		t.Errorf("response = %+v, want nil on swallowed failure", resp)
	}
	if len(errEvents) != 1 || errEvents[0].Op != "register" {
		t.Errorf("error events = %+v, want one register failure", errEvents)
	}
}

func TestLoginPropagatesErrors(t *testing.T) {
	a, fake := testAdapter(testConfig())
	fake.loginErr = errors.New("M_FORBIDDEN")
	if _, err := a.Login(context.Background(), "relay", "wrong"); err == nil {
		t.Fatal("Login swallowed the external error")
	}
}

func TestRegisterActorRequiresPubkey(t *testing.T) {
	a, fake := testAdapter(testConfig())
	_, err := a.RegisterActor(context.Background(), ActorRegistration{Username: "relay", Connect: true})
	if !IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if fake.loginCalls != 0 || fake.registerCalls != 0 || fake.joinCount() != 0 {
		t.Error("network interaction happened despite missing pubkey")
	}
}

func TestRegisterActorDerivesFromPubkeyOnly(t *testing.T) {
	a, _ := testAdapter(testConfig())
	first, err := a.RegisterActor(context.Background(), ActorRegistration{Pubkey: "ed25519:abc", Username: "one"})
	if err != nil {
		t.Fatalf("RegisterActor failed: %v", err)
	}
	second, err := a.RegisterActor(context.Background(), ActorRegistration{Pubkey: "ed25519:abc", Username: "two"})
	if err != nil {
		t.Fatalf("RegisterActor failed: %v", err)
	}
	if first.Actor.ID != second.Actor.ID {
		t.Errorf("same pubkey derived different actors: %q vs %q", first.Actor.ID, second.Actor.ID)
	}
}

func TestRegisterActorConnectReport(t *testing.T) {
	a, fake := testAdapter(testConfig())
	fake.available = true
	fake.registerErr = errors.New("M_USER_IN_USE")

	report, err := a.RegisterActor(context.Background(), ActorRegistration{
		Pubkey:   "ed25519:abc",
		Username: "relay",
		Password: "hunter2",
		Connect:  true,
	})
	if err != nil {
		t.Fatalf("RegisterActor failed: %v", err)
	}
	if len(report.Steps) != 4 {
		t.Fatalf("report steps = %d, want 4", len(report.Steps))
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Step != "register" {
		t.Errorf("failed steps = %+v, want only register", failed)
	}
	// A failing register never blocks login and join.
	if fake.loginCalls != 1 {
		t.Errorf("login calls = %d, want 1", fake.loginCalls)
	}
	if fake.joinCount() != 1 {
		t.Errorf("join calls = %d, want 1", fake.joinCount())
	}
}

func TestRegisterActorSkipsRegisterWhenTaken(t *testing.T) {
	a, fake := testAdapter(testConfig())
	fake.available = false

	report, err := a.RegisterActor(context.Background(), ActorRegistration{
		Pubkey:   "ed25519:abc",
		Username: "relay",
		Password: "hunter2",
		Connect:  true,
	})
	if err != nil {
		t.Fatalf("RegisterActor failed: %v", err)
	}
	if fake.registerCalls != 0 {
		t.Errorf("register calls = %d, want 0 for taken username", fake.registerCalls)
	}
	var sawSkip bool
	for _, step := range report.Steps {
		if step.Step == "register" && step.Skipped {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Error("report does not record the skipped register step")
	}
}
