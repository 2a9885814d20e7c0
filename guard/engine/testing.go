package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/cachestore"
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/guard/ratewindow"
	"github.com/harbor-social/warden/transport"
)

// EngineTestFixture returns an engine wired entirely to in-memory stores and a
// recording fake transport, with the default detection modules in priority
// order. Known identities: the bot is "warden-self", "owner-1" holds the owner
// role, "author-1" the author role. Intentionally exported, for use in other
// packages' tests.
func EngineTestFixture() *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := modstore.NewMemModStore()
	return &Engine{
		Logger:    logger,
		Store:     store,
		Counters:  countstore.NewMemCountStore(),
		Cache:     cachestore.NewMemCacheStore(1000, time.Minute),
		Transport: transport.NewFakeTransport("warden-self"),
		Auth:      auth.NewResolver(store, logger, []string{"author-1"}, []string{"owner-1"}),
		Spam:      ratewindow.NewSpamTracker(ratewindow.DefaultSpamConfig()),
		Detectors: []detectors.Detector{
			detectors.NewDefaultFlood(store),
			detectors.NewCharFlood(store),
			detectors.NewDefaultProfanity(store),
			detectors.NewLink(store, nil),
			detectors.NewGeo(store, []string{"62"}, nil),
		},
	}
}
