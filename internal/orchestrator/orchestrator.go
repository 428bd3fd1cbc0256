// Package orchestrator implements the single logically-owned actor that
// drives a collection cycle end to end: registering with the CMS,
// resolving the current schedule, dispatching downloads through the
// CacheManager, and reacting to push-channel commands. Every mutation of
// PlayerState happens on this actor; other goroutines communicate with
// it by calling its exported methods, which serialise through an
// internal command queue, never by touching PlayerState directly.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"playercore/internal/cachemanager"
	"playercore/internal/events"
	"playercore/internal/fileid"
	"playercore/internal/logging"
	"playercore/internal/notify"
	"playercore/internal/pushchannel"
	"playercore/internal/resolver"
	"playercore/internal/schedule"
	"playercore/internal/transport"
)

const defaultCollectJobName = "collection-tick"

// CommandSink receives command_action/trigger_webhook payloads the core
// has no opinion about; the platform supplies the implementation.
type CommandSink interface {
	RunCommand(ctx context.Context, code string, args map[string]string)
	TriggerWebhook(ctx context.Context, code string)
}

// GeoPoller is asked to resolve the device's current location when a
// current_geo_location push command carries no coordinates of its own.
type GeoPoller interface {
	PollLocation(ctx context.Context) (resolver.Location, bool, error)
}

// Config wires an Orchestrator's dependencies.
type Config struct {
	Transport              transport.Transport
	PushChannel            pushchannel.PushChannel
	Cache                  *cachemanager.Manager
	Sink                   events.Sink
	Commands               CommandSink
	Geo                    GeoPoller
	DefaultCollectInterval time.Duration
	Logger                 *slog.Logger
	// LevelHandler, if set, lets SetLogLevel adjust this component's
	// verbosity at runtime in response to a log_level_changed request.
	LevelHandler *logging.ComponentFilterHandler
}

// Orchestrator is the player core's central actor.
type Orchestrator struct {
	transport   transport.Transport
	pushChannel pushchannel.PushChannel
	cache       *cachemanager.Manager
	sink        events.Sink
	commands    CommandSink
	geo         GeoPoller
	state         *PlayerState
	scheduler     *Scheduler
	logger        *slog.Logger
	levelHandler  *logging.ComponentFilterHandler
	pendingSignal *notify.Signal

	model  *schedule.Model
	xmrURL string
	xmrKey string

	pushChannelEverConnected bool

	cancelCommandLoop context.CancelFunc
}

// New constructs an Orchestrator. Start must be called before it does
// anything.
func New(cfg Config) (*Orchestrator, error) {
	logger := logging.Default(cfg.Logger).With("component", "orchestrator")
	sched, err := newScheduler(logger, 4, time.Now)
	if err != nil {
		return nil, err
	}
	interval := cfg.DefaultCollectInterval
	if interval <= 0 {
		interval = time.Minute
	}
	sink := cfg.Sink
	if sink == nil {
		sink = events.NewLogSink(logger)
	}
	return &Orchestrator{
		transport:   cfg.Transport,
		pushChannel: cfg.PushChannel,
		cache:       cfg.Cache,
		sink:        sink,
		commands:    cfg.Commands,
		geo:         cfg.Geo,
		state:         NewPlayerState(interval),
		scheduler:     sched,
		logger:        logger,
		levelHandler:  cfg.LevelHandler,
		pendingSignal: notify.NewSignal(),
	}, nil
}

// PendingWake returns a channel that closes whenever a previously
// pending layout may have become resolvable, for a renderer that wants
// to re-check PlayerState.PendingMissing without polling.
func (o *Orchestrator) PendingWake() <-chan struct{} {
	return o.pendingSignal.C()
}

// Status is a point-in-time snapshot for external inspection (the
// control socket's "stat" command), distinct from the CMS-facing
// StatusReport submitted by the stats flush.
type Status struct {
	CurrentLayout   *fileid.ID
	Collecting      bool
	CollectInterval time.Duration
}

// Status snapshots the current PlayerState.
func (o *Orchestrator) Status() Status {
	st := Status{Collecting: o.state.IsCollecting(), CollectInterval: o.state.CollectInterval()}
	if id, ok := o.state.CurrentLayout(); ok {
		st.CurrentLayout = &id
	}
	return st
}

// PurgeAll invalidates every file the current schedule model knows
// about, for the control socket's "purge" command. Mirrors the
// push-channel purge_all handler in commands.go.
func (o *Orchestrator) PurgeAll() {
	o.cache.PurgeAll(o.knownFileIDs())
}

// SetLogLevel adjusts this process's component-scoped verbosity at
// runtime. No-op if the Orchestrator wasn't constructed with a
// LevelHandler.
func (o *Orchestrator) SetLogLevel(component string, level slog.Level) {
	if o.levelHandler == nil {
		return
	}
	o.levelHandler.SetLevel(component, level)
	o.emit(events.Event{Kind: events.KindLogLevelChanged, Level: level, Detail: component})
}

// Start registers the periodic collection tick and begins consuming
// push-channel commands. It does not block.
func (o *Orchestrator) Start(ctx context.Context) error {
	cctx, cancel := context.WithCancel(ctx)
	o.cancelCommandLoop = cancel
	go o.commandLoop(cctx)

	if err := o.startStatsFlush(ctx); err != nil {
		return err
	}

	interval := o.state.CollectInterval()
	return o.scheduler.AddDurationJob(defaultCollectJobName, interval, func() {
		o.Collect(context.WithoutCancel(ctx))
	})
}

// commandLoop drains the PushChannel's Commands() channel for as long as
// ctx is live, dispatching each one. A handler failure is logged and
// never tears down the channel, per spec.
func (o *Orchestrator) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-o.pushChannel.Commands():
			if !ok {
				return
			}
			o.handleCommand(ctx, cmd)
		}
	}
}

// rescheduleCollect rebuilds the periodic tick at the given interval,
// emitting collection_interval_updated if one was already registered.
func (o *Orchestrator) rescheduleCollect(ctx context.Context, interval time.Duration) {
	already := o.scheduler.HasJob(defaultCollectJobName)
	o.state.SetCollectInterval(interval)
	_ = o.scheduler.UpdateDurationJob(defaultCollectJobName, interval, func() {
		o.Collect(context.WithoutCancel(ctx))
	})
	if already {
		o.emit(events.Event{Kind: events.KindCollectionIntervalUpd, Interval: interval})
	} else {
		o.emit(events.Event{Kind: events.KindCollectionIntervalSet, Interval: interval})
	}
}

// Cleanup cancels the periodic timer, stops the PushChannel (marking it
// intentional), and emits cleanup_complete. No events fire afterward.
func (o *Orchestrator) Cleanup() {
	if o.cancelCommandLoop != nil {
		o.cancelCommandLoop()
	}
	_ = o.scheduler.Stop()
	o.pushChannel.Stop()
	o.emit(events.Event{Kind: events.KindCleanupComplete})
}

func (o *Orchestrator) emit(e events.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	o.sink.Emit(e)
}

// fileDescriptors snapshots the RequiredFileDescriptor list keyed by
// FileID, for the current collection cycle only.
func fileDescriptors(files []transport.RequiredFileDescriptor) map[fileid.ID]transport.RequiredFileDescriptor {
	out := make(map[fileid.ID]transport.RequiredFileDescriptor, len(files))
	for _, f := range files {
		out[f.FileID] = f
	}
	return out
}
