package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/harbor-social/warden/guard/admin"
	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/guard/cachestore"
	"github.com/harbor-social/warden/guard/command"
	"github.com/harbor-social/warden/guard/countstore"
	"github.com/harbor-social/warden/guard/detectors"
	"github.com/harbor-social/warden/guard/engine"
	"github.com/harbor-social/warden/guard/modstore"
	"github.com/harbor-social/warden/guard/ratewindow"
	"github.com/harbor-social/warden/transport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	dispatcher *command.Dispatcher
	store      modstore.ModStore
	auth       *auth.Resolver
	budget     *ratewindow.Budget
	spam       *ratewindow.SpamTracker
	rdb        *redis.Client
	prefix     string
}

type Config struct {
	Logger    *slog.Logger
	Transport transport.Transport

	RedisURL   string
	WebhookURL string

	CommandPrefix string
	Authors       []string
	Owners        []string

	AllowedCountryCodes []string
	AllowedIDs          []string
	AllowedLinkDomains  []string

	MaxWarnings  int
	MuteDuration time.Duration
	BudgetLimit  int
	BudgetSpan   time.Duration
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("a transport is required")
	}

	var store modstore.ModStore
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		mst, err := modstore.NewRedisModStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis modstore: %v", err)
		}
		store = mst

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 5*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		store = modstore.NewMemModStore()
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 5*time.Minute)
	}

	resolver := auth.NewResolver(store, logger, config.Authors, config.Owners)
	spam := ratewindow.NewSpamTracker(ratewindow.DefaultSpamConfig())

	budgetLimit := config.BudgetLimit
	if budgetLimit <= 0 {
		budgetLimit = 20
	}
	budgetSpan := config.BudgetSpan
	if budgetSpan <= 0 {
		budgetSpan = time.Minute
	}
	budget := ratewindow.NewBudget(budgetLimit, budgetSpan)

	eng := &engine.Engine{
		Logger:    logger,
		Store:     store,
		Counters:  counters,
		Cache:     cache,
		Transport: config.Transport,
		Auth:      resolver,
		Spam:      spam,
		Detectors: []detectors.Detector{
			detectors.NewDefaultFlood(store),
			detectors.NewCharFlood(store),
			detectors.NewDefaultProfanity(store),
			detectors.NewLink(store, config.AllowedLinkDomains),
			detectors.NewGeo(store, config.AllowedCountryCodes, config.AllowedIDs),
		},
		MaxWarnings:  config.MaxWarnings,
		MuteDuration: config.MuteDuration,
	}
	if config.WebhookURL != "" {
		logger.Info("configuring audit webhook")
		eng.Notifier = &engine.WebhookNotifier{WebhookURL: config.WebhookURL}
	}

	registry := command.NewRegistry()
	admin.Register(registry, admin.Deps{
		Logger:    logger,
		Engine:    eng,
		Store:     store,
		Auth:      resolver,
		Transport: config.Transport,
		StartedAt: time.Now(),
	})

	dispatcher := &command.Dispatcher{
		Logger:    logger,
		Registry:  registry,
		Auth:      resolver,
		Cooldowns: ratewindow.NewCooldowns(store, nil),
		Budget:    budget,
		Transport: config.Transport,
		Counters:  counters,
	}

	prefix := config.CommandPrefix
	if prefix == "" {
		prefix = "!"
	}

	return &Server{
		logger:     logger,
		engine:     eng,
		dispatcher: dispatcher,
		store:      store,
		auth:       resolver,
		budget:     budget,
		spam:       spam,
		rdb:        rdb,
		prefix:     prefix,
	}, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run consumes normalized events until the channel closes or the context
// ends. Events are handled serially; the stores do their own locking, so this
// could become a worker pool if one chat session ever produces enough volume.
func (s *Server) Run(ctx context.Context, events <-chan transport.Event) error {
	housekeeping := time.NewTicker(5 * time.Minute)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-housekeeping.C:
			s.budget.Sweep(now)
			s.spam.Sweep(now)
			s.logger.Debug("housekeeping sweep done",
				"budget_users", s.budget.Size(), "spam_users", s.spam.Size())
		case evt, ok := <-events:
			if !ok {
				s.logger.Info("event stream closed")
				return nil
			}
			s.handleEvent(ctx, evt)
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, evt transport.Event) {
	switch {
	case evt.Message != nil:
		s.handleMessage(ctx, *evt.Message)
	case evt.Membership != nil:
		s.handleMembership(ctx, *evt.Membership)
	}
}

func (s *Server) handleMessage(ctx context.Context, msg transport.MessageEvent) {
	if !msg.IsCommand {
		if name, args, ok := transport.ParseCommand(msg.Text, s.prefix); ok {
			msg.IsCommand = true
			msg.Command = name
			msg.Args = args
		}
	}
	if msg.IsGroup && !s.groupAdmitted(ctx, msg) {
		return
	}
	if msg.IsCommand {
		if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			s.logger.Debug("command refused", "command", msg.Command, "err", err)
		}
		return
	}
	if _, err := s.engine.ProcessMessage(ctx, msg); err != nil {
		s.logger.Error("processing message", "err", err)
	}
}

// groupAdmitted gates group traffic: a group must be whitelisted or protected
// before its events are processed at all. Owners and the author bypass the
// gate so a fresh group can be whitelisted from inside it.
func (s *Server) groupAdmitted(ctx context.Context, msg transport.MessageEvent) bool {
	settings, err := s.store.GetGroup(ctx, msg.GroupID)
	if err != nil {
		s.logger.Error("reading group settings", "group", msg.GroupID, "err", err)
		return false
	}
	if settings.Whitelisted || settings.Protected {
		return true
	}
	return s.auth.EffectiveRole(msg.Sender) >= auth.RoleOwner
}

func (s *Server) handleMembership(ctx context.Context, evt transport.MembershipEvent) {
	if evt.Action != transport.MembershipAdd {
		return
	}
	for _, id := range evt.ParticipantIDs {
		if _, err := s.engine.ProcessJoin(ctx, evt.GroupID, id); err != nil {
			s.logger.Error("processing join", "group", evt.GroupID, "user", id, "err", err)
		}
	}
}
