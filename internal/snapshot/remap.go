// internal/snapshot/remap.go
package snapshot

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/pkg/models"
)

// Recording ids look like "dcf620e2-bd53-4332". Element id attributes reject
// dashes downstream, so during capture the ids travel in an attribute form
// with dashes turned into x and a BID prefix: "BIDdcf620e2xbd53x4332". After
// capture everything is remapped back to the recording form.

const tempIDPrefix = "BID"

// IsTempID reports whether s is a recording id in attribute form.
func IsTempID(s string) bool {
	if !strings.HasPrefix(s, tempIDPrefix) {
		return false
	}
	s = s[len(tempIDPrefix):]
	if len(s) < 14 {
		return false
	}
	if strings.Count(s, "x") != 2 || s[8] != 'x' || s[13] != 'x' {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefx", c) {
			return false
		}
	}
	return true
}

// TempToUID converts an attribute-form id back to the recording form.
func TempToUID(tempID string) (string, error) {
	if !strings.HasPrefix(tempID, tempIDPrefix) {
		return "", fmt.Errorf("invalid temporary id format: %s", tempID)
	}
	return strings.ReplaceAll(tempID[len(tempIDPrefix):], "x", "-"), nil
}

// UIDToTemp converts a recording id into the attribute form.
func UIDToTemp(uid string) string {
	return tempIDPrefix + strings.ReplaceAll(uid, "-", "x")
}

// RemapDOMSnapshot rewrites every entry of the snapshot string table that is
// an attribute-form id. Attribute values that merely contain an id, such as
// the markers left in aria-description, are deliberately left alone.
func RemapDOMSnapshot(snap *DOMSnapshot) {
	if snap == nil {
		return
	}
	for i, s := range snap.Strings {
		if IsTempID(s) {
			uid, err := TempToUID(s)
			if err != nil {
				continue
			}
			snap.Strings[i] = uid
		}
	}
}

// RemapAXTree rewrites the recovered element id of every node.
func RemapAXTree(tree *AXTree) {
	if tree == nil {
		return
	}
	for _, node := range tree.Nodes {
		if node == nil || node.BrowserGymID == "" {
			continue
		}
		uid, err := TempToUID(node.BrowserGymID)
		if err != nil {
			log.Debug().Str("id", node.BrowserGymID).Msg("Leaving unrecognized element id untouched")
			continue
		}
		node.BrowserGymID = uid
	}
}

// RemapExtraProps rekeys the extracted element properties to recording ids.
// Keys that do not parse come from stray bid attributes in the recording
// itself and are dropped rather than failing the whole page.
func RemapExtraProps(props map[string]*models.ElementProperties) map[string]*models.ElementProperties {
	remapped := make(map[string]*models.ElementProperties, len(props))
	for key, value := range props {
		uid, err := TempToUID(key)
		if err != nil {
			log.Debug().Str("id", key).Msg("Dropping element with unrecognized id")
			continue
		}
		remapped[uid] = value
	}
	return remapped
}
