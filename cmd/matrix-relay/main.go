package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/exzerolog"
	flag "maunium.net/go/mauflag"

	"github.com/openactor/matrix-relay/pkg/emitter"
	"github.com/openactor/matrix-relay/pkg/relay"
)

var configPath = flag.MakeFull("c", "config", "Path to the config file", "config.yaml").String()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"matrix-relay - relay a Matrix coordinator room into a local activity stream.",
		"matrix-relay [-c config.yaml]",
	)
	if err := flag.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		return
	}

	cfg := exerrors.Must(relay.LoadConfig(*configPath))
	log := exerrors.Must(cfg.Logging.Compile())
	exzerolog.SetupDefaults(log)

	adapter := exerrors.Must(relay.New(*cfg, *log))
	events := adapter.Events()
	events.On(emitter.Activity, func(payload any) {
		act := payload.(relay.ActivityEvent)
		log.Info().
			Str("actor", act.Actor).
			Str("event_id", act.Object.ID).
			Str("target", act.Target).
			Msg("Activity")
	})
	events.On(emitter.Warning, func(payload any) {
		warn := payload.(relay.WarningEvent)
		log.Warn().
			Str("event_type", warn.Type.String()).
			Str("room_id", warn.RoomID.String()).
			Msg(warn.Reason)
	})
	events.On(emitter.Error, func(payload any) {
		errEvt := payload.(relay.ErrorEvent)
		log.Error().Err(errEvt.Err).Str("op", errEvt.Op).Msg("Relay operation failed")
	})
	events.On(emitter.Ready, func(payload any) {
		ready := payload.(relay.ReadyEvent)
		log.Info().
			Str("handle", ready.Handle).
			Str("coordinator", ready.Coordinator).
			Msg("Relay ready")
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	exerrors.PanicIfNotNil(adapter.Start(ctx))
	<-ctx.Done()
	log.Info().Msg("Shutting down")
	adapter.Stop()
}
