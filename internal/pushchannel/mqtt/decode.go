package mqtt

import (
	"encoding/json"

	"playercore/internal/pushchannel"
)

// wireCommand is the JSON envelope published to "{xmr_channel}/cmd".
type wireCommand struct {
	Kind     string            `json:"kind"`
	LayoutID uint64            `json:"layoutId,omitempty"`
	Code     string            `json:"code,omitempty"`
	Args     map[string]string `json:"args,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
}

var knownKinds = map[string]pushchannel.Kind{
	"collect_now":          pushchannel.KindCollectNow,
	"change_layout":        pushchannel.KindChangeLayout,
	"overlay_layout":       pushchannel.KindOverlayLayout,
	"revert_to_schedule":   pushchannel.KindRevertToSchedule,
	"purge_all":            pushchannel.KindPurgeAll,
	"command_action":       pushchannel.KindCommandAction,
	"trigger_webhook":      pushchannel.KindTriggerWebhook,
	"data_update":          pushchannel.KindDataUpdate,
	"rekey":                pushchannel.KindRekey,
	"criteria_update":      pushchannel.KindCriteriaUpdate,
	"current_geo_location": pushchannel.KindCurrentGeoLocation,
	"screen_shot":          pushchannel.KindScreenShot,
	"licence_check":        pushchannel.KindLicenceCheck,
}

func decodeCommand(payload []byte) (pushchannel.Command, error) {
	var w wireCommand
	if err := json.Unmarshal(payload, &w); err != nil {
		return pushchannel.Command{}, err
	}
	kind, ok := knownKinds[w.Kind]
	if !ok {
		kind = pushchannel.KindUnknown
	}
	return pushchannel.Command{
		Kind:     kind,
		LayoutID: w.LayoutID,
		Code:     w.Code,
		Args:     w.Args,
		Payload:  w.Payload,
	}, nil
}
