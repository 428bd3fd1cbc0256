package orchestrator

import (
	"context"
	"sync"
	"time"

	"playercore/internal/events"
	"playercore/internal/fileid"
	"playercore/internal/resolver"
	"playercore/internal/schedule"
	"playercore/internal/transport"
)

// Collect runs one collection cycle. A call while a cycle is already in
// progress returns immediately without error, per the non-reentrancy
// invariant.
func (o *Orchestrator) Collect(ctx context.Context) {
	if !o.state.BeginCollecting() {
		return
	}
	defer o.state.EndCollecting()

	o.emit(events.Event{Kind: events.KindCollectionStart})

	reg, err := o.transport.Register(ctx)
	if err != nil {
		o.emit(events.Event{Kind: events.KindCollectionError, Err: err})
		return
	}
	o.emit(events.Event{Kind: events.KindRegisterComplete})
	if reg.CollectInterval > 0 && reg.CollectInterval != o.state.CollectInterval() {
		o.rescheduleCollect(ctx, reg.CollectInterval)
	}
	if reg.XMRURL != "" {
		o.xmrURL, o.xmrKey = reg.XMRURL, reg.XMRKey
		o.ensurePushChannelConnected(ctx, reg.XMRURL, reg.XMRKey)
	}

	files, err := o.transport.RequiredFiles(ctx)
	if err != nil {
		o.emit(events.Event{Kind: events.KindCollectionError, Err: err})
		return
	}
	o.emit(events.Event{Kind: events.KindFilesReceived})

	model, err := o.transport.Schedule(ctx)
	if err != nil {
		o.emit(events.Event{Kind: events.KindCollectionError, Err: err})
		return
	}
	o.model = model
	o.emit(events.Event{Kind: events.KindScheduleReceived})
	o.schedulePeggedCommands(ctx, model.Commands)

	out := resolver.Resolve(model, time.Now(), o.state.Env(), o.state)
	if len(out.MainLayouts) == 0 {
		o.emit(events.Event{Kind: events.KindNoLayoutsScheduled})
	} else {
		o.emit(events.Event{Kind: events.KindLayoutsScheduled})
	}

	descriptors := fileDescriptors(files)
	order := dependencyOrder(out.MainLayouts)
	o.dispatchDownloads(ctx, order, descriptors)

	o.handleFirstLayout(out.MainLayouts)

	if len(out.MainLayouts) == 0 {
		if _, ok := o.state.CurrentLayout(); ok {
			o.forceDefaultLayout(model)
		}
	}

	o.emit(events.Event{Kind: events.KindCollectionComplete})
}

// dependencyOrder flattens main layouts, highest priority first (already
// the order resolver.Resolve returns them in), into a single descriptor
// list: each layout's own file ID precedes its dependencies.
func dependencyOrder(layouts []schedule.ScheduledLayout) []fileid.ID {
	seen := make(map[fileid.ID]bool)
	var out []fileid.ID
	add := func(id fileid.ID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, l := range layouts {
		add(l.FileID)
		for _, dep := range l.Dependencies {
			add(dep)
		}
	}
	return out
}

// schedulePeggedCommands registers a one-time job for each command the
// schedule document pegs to a specific timestamp, skipping any already
// registered from a prior collection cycle and any whose time has
// already passed.
func (o *Orchestrator) schedulePeggedCommands(ctx context.Context, commands []schedule.ScheduledCommand) {
	now := time.Now()
	for _, cmd := range commands {
		if !cmd.At.After(now) {
			continue
		}
		name := "peg:" + cmd.Code + ":" + cmd.At.Format(time.RFC3339)
		if o.scheduler.HasJob(name) {
			continue
		}
		code, args := cmd.Code, cmd.Args
		if err := o.scheduler.RunAt(name, cmd.At, func() {
			if o.commands != nil {
				o.commands.RunCommand(context.WithoutCancel(ctx), code, args)
			}
		}); err != nil {
			o.logger.Warn("pegged command schedule failed", "code", code, "error", err)
		}
	}
}

// dispatchDownloads fetches every ordered file ID through the
// CacheManager, emitting file_ready as each completes and running the
// pending-layout scan immediately rather than waiting for the whole
// batch.
func (o *Orchestrator) dispatchDownloads(ctx context.Context, order []fileid.ID, descriptors map[fileid.ID]transport.RequiredFileDescriptor) {
	if len(order) == 0 {
		return
	}
	o.emit(events.Event{Kind: events.KindDownloadRequest})

	var wg sync.WaitGroup
	for _, id := range order {
		desc, ok := descriptors[id]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(desc transport.RequiredFileDescriptor) {
			defer wg.Done()
			if err := o.cache.Fetch(ctx, desc); err != nil {
				o.logger.Warn("fetch failed", "file_id", desc.FileID.String(), "error", err)
				return
			}
			o.onFileReady(desc.FileID)
		}(desc)
	}
	wg.Wait()
}

// onFileReady reports a completed download and resolves any pending
// layouts it unblocks.
func (o *Orchestrator) onFileReady(id fileid.ID) {
	o.emit(events.Event{Kind: events.KindFileReady, FileID: id, FileKind: id.Kind})

	ready := o.state.ScanPendingForReady(id)
	for _, layoutID := range ready {
		o.emit(events.Event{Kind: events.KindLayoutReady, FileID: layoutID})
	}
	if len(ready) > 0 {
		o.pendingSignal.Notify()
	}
}

// handleFirstLayout implements step 7 of the collection cycle for the
// highest-priority resolved main layout.
func (o *Orchestrator) handleFirstLayout(layouts []schedule.ScheduledLayout) {
	if len(layouts) == 0 {
		return
	}
	o.prepareLayout(layouts[0])
}

// prepareLayout implements the already-playing / ready / pending
// decision shared by the collection cycle's first-layout step and the
// change_layout push command.
func (o *Orchestrator) prepareLayout(l schedule.ScheduledLayout) {
	o.emit(events.Event{Kind: events.KindLayoutPrepareRequest, FileID: l.FileID})

	if current, ok := o.state.CurrentLayout(); ok && current == l.FileID {
		o.emit(events.Event{Kind: events.KindLayoutAlreadyPlaying, FileID: l.FileID})
		return
	}

	missing := o.missingDependencies(l)
	if len(missing) == 0 {
		o.state.ClearPending(l.FileID)
		o.recordPlayStart(l)
		o.emit(events.Event{Kind: events.KindLayoutReady, FileID: l.FileID})
		return
	}
	o.state.SetPending(l.FileID, missing)
	o.emit(events.Event{Kind: events.KindLayoutPending, FileID: l.FileID, Missing: missing})
	o.emit(events.Event{Kind: events.KindCheckPendingLayout, FileID: l.FileID, Missing: missing})
}

// recordPlayStart logs both the max-plays-per-hour throttle counter and a
// queued proof-of-play stat record for the next stats flush.
func (o *Orchestrator) recordPlayStart(l schedule.ScheduledLayout) {
	now := time.Now()
	o.state.RecordPlay(l.ScheduleID, now)
	o.state.QueueStat(transport.StatRecord{LayoutID: l.FileID, From: now, Tag: l.ScheduleID})
}

// findLayout looks up a layout by file ID across standalone layouts and
// campaign-nested layouts in the current schedule model, for commands
// (change_layout) that target a layout by id rather than by resolver
// priority. Returns a bare entry with no dependencies if the model
// doesn't know about it yet.
func (o *Orchestrator) findLayout(id fileid.ID) schedule.ScheduledLayout {
	if o.model != nil {
		for _, l := range o.model.Layouts {
			if l.FileID == id {
				return l
			}
		}
		for _, c := range o.model.Campaigns {
			for _, l := range c.Layouts {
				if l.FileID == id {
					return l
				}
			}
		}
	}
	return schedule.ScheduledLayout{FileID: id}
}

// missingDependencies reports which of a layout's own file and
// dependencies are not yet resolvable in the CacheManager.
func (o *Orchestrator) missingDependencies(l schedule.ScheduledLayout) []fileid.ID {
	var missing []fileid.ID
	if !o.cache.Exists(l.FileID) {
		missing = append(missing, l.FileID)
	}
	for _, dep := range l.Dependencies {
		if !o.cache.Exists(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// forceDefaultLayout transitions to the schedule's default layout when
// no main layout resolved but one was previously playing.
func (o *Orchestrator) forceDefaultLayout(model *schedule.Model) {
	o.state.ClearCurrentLayout()
	o.emit(events.Event{Kind: events.KindLayoutCleared})
	o.emit(events.Event{Kind: events.KindLayoutCurrent, FileID: model.DefaultLayoutFile})
}

// ensurePushChannelConnected starts the PushChannel if it isn't already
// live for this url/key pair. Start is idempotent per the PushChannel
// contract; the first successful connection emits xmr_connected, any
// later one (e.g. after the channel dropped and a new cycle re-invoked
// start) emits xmr_reconnected.
func (o *Orchestrator) ensurePushChannelConnected(ctx context.Context, url, key string) {
	if err := o.pushChannel.Start(ctx, url, key); err != nil {
		o.logger.Warn("push channel start failed", "error", err)
		return
	}
	if o.pushChannelEverConnected {
		o.emit(events.Event{Kind: events.KindXMRReconnected})
		return
	}
	o.pushChannelEverConnected = true
	o.emit(events.Event{Kind: events.KindXMRConnected})
}
