package snapshot

import (
	"testing"

	"github.com/web-traces/wlprep/pkg/models"
)

func TestIsTempID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"BIDdcf620e2xbd53x4332", true},
		{"BIDaaaaaaaaxbbbbxcccc", true},
		{"BID00000000x0000x0000", true},
		{"dcf620e2xbd53x4332", false},     // missing prefix
		{"BIDdcf620e2-bd53-4332", false},  // dashes not converted
		{"BIDdcf620e2xbd5x", false},       // too short
		{"BIDdcf620e2xbd5x34332", false},  // x in the wrong position
		{"BIDdcf620g2xbd53x4332", false},  // non-hex character
		{"BIDxxf620e2xbd53x4332", false},  // too many x
		{"BIDDCF620E2xBD53x4332", false},  // uppercase hex is never recorded
		{"", false},
		{"BID", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsTempID(tt.id); got != tt.want {
				t.Errorf("IsTempID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestTempToUID(t *testing.T) {
	uid, err := TempToUID("BIDdcf620e2xbd53x4332")
	if err != nil {
		t.Fatalf("TempToUID failed: %v", err)
	}
	if uid != "dcf620e2-bd53-4332" {
		t.Errorf("TempToUID = %q, want %q", uid, "dcf620e2-bd53-4332")
	}

	if _, err := TempToUID("dcf620e2xbd53x4332"); err == nil {
		t.Error("Expected error for id without prefix")
	}
}

func TestUIDToTemp_Roundtrip(t *testing.T) {
	uid := "dcf620e2-bd53-4332"
	temp := UIDToTemp(uid)
	if temp != "BIDdcf620e2xbd53x4332" {
		t.Errorf("UIDToTemp = %q, want %q", temp, "BIDdcf620e2xbd53x4332")
	}
	if !IsTempID(temp) {
		t.Errorf("UIDToTemp produced id that IsTempID rejects: %q", temp)
	}

	back, err := TempToUID(temp)
	if err != nil {
		t.Fatalf("TempToUID failed: %v", err)
	}
	if back != uid {
		t.Errorf("Roundtrip = %q, want %q", back, uid)
	}
}

func TestRemapDOMSnapshot(t *testing.T) {
	snap := &DOMSnapshot{
		Strings: []string{
			"div",
			"BIDdcf620e2xbd53x4332",
			"browsergym_id_BIDdcf620e2xbd53x4332 label", // embedded marker stays
			"BIDnotanid",
			"aria-roledescription",
		},
	}

	RemapDOMSnapshot(snap)

	want := []string{
		"div",
		"dcf620e2-bd53-4332",
		"browsergym_id_BIDdcf620e2xbd53x4332 label",
		"BIDnotanid",
		"aria-roledescription",
	}
	for i, s := range want {
		if snap.Strings[i] != s {
			t.Errorf("Strings[%d] = %q, want %q", i, snap.Strings[i], s)
		}
	}
}

func TestRemapAXTree(t *testing.T) {
	tree := &AXTree{Nodes: []*AXNode{
		{BrowserGymID: "BIDdcf620e2xbd53x4332"},
		{BrowserGymID: ""},
		{BrowserGymID: "stray"},
	}}

	RemapAXTree(tree)

	if tree.Nodes[0].BrowserGymID != "dcf620e2-bd53-4332" {
		t.Errorf("Node 0 id = %q, want recording form", tree.Nodes[0].BrowserGymID)
	}
	if tree.Nodes[1].BrowserGymID != "" {
		t.Errorf("Node 1 id = %q, want empty", tree.Nodes[1].BrowserGymID)
	}
	if tree.Nodes[2].BrowserGymID != "stray" {
		t.Errorf("Node 2 id = %q, want untouched", tree.Nodes[2].BrowserGymID)
	}
}

func TestRemapExtraProps(t *testing.T) {
	props := map[string]*models.ElementProperties{
		"BIDdcf620e2xbd53x4332": {Clickable: 1},
		"stray-attribute":       {},
	}

	remapped := RemapExtraProps(props)

	if len(remapped) != 1 {
		t.Fatalf("Expected 1 remapped entry, got %d", len(remapped))
	}
	p, ok := remapped["dcf620e2-bd53-4332"]
	if !ok {
		t.Fatal("Remapped key missing")
	}
	if p.Clickable != 1 {
		t.Errorf("Clickable = %v, want 1", p.Clickable)
	}
}
