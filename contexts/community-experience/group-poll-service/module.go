package grouppollservice

import (
	"log/slog"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/adapters/cache"
	httpadapter "pollbot/contexts/community-experience/group-poll-service/adapters/http"
	"pollbot/contexts/community-experience/group-poll-service/adapters/memory"
	"pollbot/contexts/community-experience/group-poll-service/application/commands"
	"pollbot/contexts/community-experience/group-poll-service/application/workers"
	"pollbot/contexts/community-experience/group-poll-service/ports"

	"go.opentelemetry.io/otel/trace"
)

type Module struct {
	Handler httpadapter.Handler
	Polls   commands.PollUseCase
	Sweep   workers.ReminderSweep
	Archive workers.ArchiveConsumer
	Store   *memory.Store
}

type Dependencies struct {
	Polls            ports.PollStore
	Members          ports.MembershipTracker
	Dispatcher       ports.Dispatcher
	Events           ports.EventPublisher
	Subscriber       ports.EventSubscriber
	Dedup            ports.EventDedupStore
	Archive          ports.ResultArchive
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	MentionBatchSize int
	QuickReplyLimit  int
	ExternalTimeout  time.Duration
	DedupTTL         time.Duration
	SweepSecret      string
	Tracer           trace.Tracer
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Polls:            deps.Polls,
		Members:          deps.Members,
		Dispatcher:       deps.Dispatcher,
		Events:           deps.Events,
		Locks:            commands.NewConversationLocks(),
		Clock:            deps.Clock,
		IDGen:            deps.IDGen,
		MentionBatchSize: deps.MentionBatchSize,
		QuickReplyLimit:  deps.QuickReplyLimit,
		ExternalTimeout:  deps.ExternalTimeout,
		Logger:           deps.Logger,
	}
	sweep := workers.ReminderSweep{
		Polls:    deps.Polls,
		Reminder: pollUseCase,
		Logger:   deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:       pollUseCase,
			Sweep:       sweep,
			Dedup:       deps.Dedup,
			DedupTTL:    deps.DedupTTL,
			SweepSecret: deps.SweepSecret,
			Tracer:      deps.Tracer,
			Logger:      deps.Logger,
		},
		Polls: pollUseCase,
		Sweep: sweep,
		Archive: workers.ArchiveConsumer{
			Subscriber: deps.Subscriber,
			Dedup:      deps.Dedup,
			Archive:    deps.Archive,
			DedupTTL:   deps.DedupTTL,
			Disabled:   deps.Subscriber == nil,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires observation-mode membership and an in-memory store
// around the given dispatcher. Events are not published.
func NewInMemoryModule(dispatcher ports.Dispatcher, sweepSecret string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Polls:            store,
		Members:          commands.ObservedMembership{Registry: store},
		Dispatcher:       dispatcher,
		Dedup:            cache.NewEventDedup(10*time.Minute, time.Minute),
		Archive:          store,
		Clock:            store,
		IDGen:            store,
		MentionBatchSize: 20,
		QuickReplyLimit:  commands.DefaultQuickReplyLimit,
		ExternalTimeout:  commands.DefaultExternalTimeout,
		DedupTTL:         10 * time.Minute,
		SweepSecret:      sweepSecret,
		Logger:           logger,
	})
	module.Store = store
	return module
}
