package main

import (
	"testing"

	"playercore/internal/playerconfig"
)

func TestApplyConfigOverridesSetsOnlyNonEmptyFlags(t *testing.T) {
	doc := &playerconfig.Document{CMSURL: "https://existing", DisplayName: "lobby-1"}

	changed := applyConfigOverrides(doc, runOptions{cmsKey: "new-key"})
	if !changed {
		t.Fatal("expected change")
	}
	if doc.CMSURL != "https://existing" {
		t.Errorf("unexpected CMSURL mutation: %s", doc.CMSURL)
	}
	if doc.CMSKey != "new-key" {
		t.Errorf("expected CMSKey to be set, got %q", doc.CMSKey)
	}
	if doc.DisplayName != "lobby-1" {
		t.Errorf("unexpected DisplayName mutation: %s", doc.DisplayName)
	}
}

func TestApplyConfigOverridesNoopWhenFlagsEmpty(t *testing.T) {
	doc := &playerconfig.Document{CMSURL: "https://existing"}
	if applyConfigOverrides(doc, runOptions{}) {
		t.Error("expected no change with all-empty options")
	}
}

func TestApplyConfigOverridesNoopWhenValueUnchanged(t *testing.T) {
	doc := &playerconfig.Document{CMSURL: "https://existing"}
	if applyConfigOverrides(doc, runOptions{cmsURL: "https://existing"}) {
		t.Error("expected no change when flag matches existing value")
	}
}
