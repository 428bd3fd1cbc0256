// Package pushchannel defines the long-lived, bidirectional command
// channel between the CMS and the player. A PushChannel maintains at
// most one live connection and fans inbound commands out over a channel
// for the orchestrator to consume.
package pushchannel

import "context"

// Kind is the closed set of command kinds the CMS may push. Unknown wire
// values decode to KindUnknown rather than failing the channel.
type Kind string

const (
	KindCollectNow         Kind = "collect_now"
	KindChangeLayout       Kind = "change_layout"
	KindOverlayLayout      Kind = "overlay_layout"
	KindRevertToSchedule   Kind = "revert_to_schedule"
	KindPurgeAll           Kind = "purge_all"
	KindCommandAction      Kind = "command_action"
	KindTriggerWebhook     Kind = "trigger_webhook"
	KindDataUpdate         Kind = "data_update"
	KindRekey              Kind = "rekey"
	KindCriteriaUpdate     Kind = "criteria_update"
	KindCurrentGeoLocation Kind = "current_geo_location"
	KindScreenShot         Kind = "screen_shot"
	KindLicenceCheck       Kind = "licence_check"
	KindUnknown            Kind = "unknown"
)

// Command is one decoded inbound message.
type Command struct {
	Kind Kind

	// LayoutID is set for change_layout/overlay_layout, as a layout
	// number (fileid.Layout(LayoutID) constructs the ID).
	LayoutID uint64

	// Code/Args are set for command_action and trigger_webhook.
	Code string
	Args map[string]string

	// Payload carries the raw criteria_update / current_geo_location body.
	Payload map[string]string
}

// PushChannel is the dynamic-dispatch boundary for the CMS push
// transport. Start is idempotent while already connected; calling it
// again with the same url/key is a no-op beyond ensuring a live
// connection exists.
type PushChannel interface {
	Start(ctx context.Context, url, key string) error
	Stop()
	Commands() <-chan Command
}
