package mqtt

import (
	"testing"

	"playercore/internal/pushchannel"
)

func TestDecodeCommandKnownKind(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"kind":"change_layout","layoutId":200}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Kind != pushchannel.KindChangeLayout || cmd.LayoutID != 200 {
		t.Errorf("got %+v", cmd)
	}
}

func TestDecodeCommandUnknownKind(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"kind":"teleport"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Kind != pushchannel.KindUnknown {
		t.Errorf("expected KindUnknown, got %v", cmd.Kind)
	}
}

func TestDecodeCommandMalformedPayload(t *testing.T) {
	if _, err := decodeCommand([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestDecodeCommandCarriesArgsAndPayload(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"kind":"command_action","code":"reboot","args":{"delay":"5"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Code != "reboot" || cmd.Args["delay"] != "5" {
		t.Errorf("got %+v", cmd)
	}
}
