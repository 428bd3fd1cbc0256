package orchestrator

import (
	"context"
	"strconv"

	"playercore/internal/events"
	"playercore/internal/fileid"
	"playercore/internal/pushchannel"
	"playercore/internal/resolver"
)

// Rekeyer is implemented by a Transport that holds credential key
// material the core can be asked to discard. Optional: a Transport that
// doesn't implement it simply re-registers on the next cycle as usual.
type Rekeyer interface {
	Rekey(ctx context.Context) error
}

// handleCommand dispatches one decoded push-channel command. A handler
// failure is logged and never tears down the channel.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd pushchannel.Command) {
	switch cmd.Kind {
	case pushchannel.KindCollectNow:
		go o.Collect(ctx)

	case pushchannel.KindChangeLayout:
		o.state.ClearCurrentLayout()
		o.emit(events.Event{Kind: events.KindLayoutCleared})
		o.prepareLayout(o.findLayout(fileid.Layout(cmd.LayoutID)))

	case pushchannel.KindOverlayLayout:
		o.emit(events.Event{Kind: events.KindLayoutReady, FileID: fileid.Layout(cmd.LayoutID), Detail: "overlay"})

	case pushchannel.KindRevertToSchedule:
		if !o.state.IsCollecting() {
			go o.Collect(ctx)
		}

	case pushchannel.KindPurgeAll:
		o.cache.PurgeAll(o.knownFileIDs())
		if !o.state.IsCollecting() {
			go o.Collect(ctx)
		}

	case pushchannel.KindCommandAction:
		if o.commands != nil {
			o.commands.RunCommand(ctx, cmd.Code, cmd.Args)
		}

	case pushchannel.KindTriggerWebhook:
		if o.commands != nil {
			o.commands.TriggerWebhook(ctx, cmd.Code)
		}

	case pushchannel.KindDataUpdate:
		if o.commands != nil {
			o.commands.RunCommand(ctx, string(cmd.Kind), nil)
		}

	case pushchannel.KindRekey:
		if rk, ok := o.transport.(Rekeyer); ok {
			if err := rk.Rekey(ctx); err != nil {
				o.logger.Warn("rekey failed", "error", err)
			}
		}

	case pushchannel.KindCriteriaUpdate:
		for k, v := range cmd.Payload {
			o.state.SetDisplayProperty(k, v)
		}
		if !o.state.IsCollecting() {
			go o.Collect(ctx)
		}

	case pushchannel.KindCurrentGeoLocation:
		o.handleGeoLocation(ctx, cmd.Payload)

	case pushchannel.KindScreenShot, pushchannel.KindLicenceCheck:
		if o.commands != nil {
			o.commands.RunCommand(ctx, string(cmd.Kind), cmd.Args)
		}

	case pushchannel.KindUnknown:
		o.logger.Warn("unrecognised push command", "kind", cmd.Kind)
	}
}

// handleGeoLocation applies a current_geo_location push command. If the
// payload carries coordinates, env.Location is updated directly;
// otherwise the platform is asked to poll its own geolocation sink.
func (o *Orchestrator) handleGeoLocation(ctx context.Context, payload map[string]string) {
	latStr, hasLat := payload["latitude"]
	lonStr, hasLon := payload["longitude"]
	if hasLat && hasLon {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr == nil && lonErr == nil {
			o.state.SetLocation(resolver.Location{Latitude: lat, Longitude: lon})
			return
		}
	}
	if o.geo == nil {
		return
	}
	loc, ok, err := o.geo.PollLocation(ctx)
	if err != nil {
		o.logger.Warn("geolocation poll failed", "error", err)
		return
	}
	if ok {
		o.state.SetLocation(loc)
	}
}

// knownFileIDs returns every file ID the current schedule model
// references, as the enumeration CacheManager.PurgeAll needs since the
// backing BlobStore cannot list its own keys.
func (o *Orchestrator) knownFileIDs() []fileid.ID {
	if o.model == nil {
		return nil
	}
	var ids []fileid.ID
	for _, l := range o.model.Layouts {
		ids = append(ids, l.FileID)
		ids = append(ids, l.Dependencies...)
	}
	for _, c := range o.model.Campaigns {
		for _, l := range c.Layouts {
			ids = append(ids, l.FileID)
			ids = append(ids, l.Dependencies...)
		}
	}
	for _, ov := range o.model.Overlays {
		ids = append(ids, ov.FileID)
		ids = append(ids, ov.Dependencies...)
	}
	return ids
}
