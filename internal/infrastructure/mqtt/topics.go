package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicRoot is used when Topics.Root is empty.
const DefaultTopicRoot = "bluos"

// Topic categories under the root.
const (
	categoryState  = "state"
	categorySet    = "set"
	categoryObject = "object"
	categoryHealth = "health"
	categorySystem = "system"
)

// Topics builds the bridge's MQTT topics under a configurable root.
//
// State store keys map onto topic levels by replacing '.' with '/':
//
//	t := mqtt.Topics{Root: "bluos"}
//	t.State("bluos.0.BluOS.Den.Status")
//	// Returns: "bluos/state/bluos/0/BluOS/Den/Status"
type Topics struct {
	Root string
}

func (t Topics) root() string {
	if t.Root == "" {
		return DefaultTopicRoot
	}
	return strings.TrimSuffix(t.Root, "/")
}

// State is the retained topic mirroring a key's current state.
func (t Topics) State(id string) string {
	return t.keyed(categoryState, id)
}

// Set is the topic external writers publish commands to.
func (t Topics) Set(id string) string {
	return t.keyed(categorySet, id)
}

// Object is the topic carrying object definition patches for a key.
func (t Topics) Object(id string) string {
	return t.keyed(categoryObject, id)
}

// Health is the retained health topic of a component.
//
// Example: bluos/health/bluos
func (t Topics) Health(component string) string {
	return fmt.Sprintf("%s/%s/%s", t.root(), categoryHealth, component)
}

// SystemStatus is the online/offline topic, also used for the LWT.
//
// Example: bluos/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/%s/status", t.root(), categorySystem)
}

// AllSets matches every set topic.
func (t Topics) AllSets() string {
	return fmt.Sprintf("%s/%s/#", t.root(), categorySet)
}

// AllObjects matches every object topic.
func (t Topics) AllObjects() string {
	return fmt.Sprintf("%s/%s/#", t.root(), categoryObject)
}

// AllStates matches every retained state topic.
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/%s/#", t.root(), categoryState)
}

// SetKey returns the state key a set topic addresses.
func (t Topics) SetKey(topic string) (string, bool) {
	return t.key(categorySet, topic)
}

// ObjectKey returns the state key an object topic addresses.
func (t Topics) ObjectKey(topic string) (string, bool) {
	return t.key(categoryObject, topic)
}

// StateKey returns the state key a state topic mirrors.
func (t Topics) StateKey(topic string) (string, bool) {
	return t.key(categoryState, topic)
}

func (t Topics) keyed(category, id string) string {
	return fmt.Sprintf("%s/%s/%s", t.root(), category, KeyToPath(id))
}

func (t Topics) key(category, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.root()+"/"+category+"/")
	if !ok || rest == "" {
		return "", false
	}
	return PathToKey(rest), true
}

// KeyToPath converts a dotted state key into topic levels.
func KeyToPath(id string) string {
	return strings.ReplaceAll(id, ".", "/")
}

// PathToKey converts topic levels back into a dotted state key.
func PathToKey(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

// ValidKey reports whether id can be carried in a topic without clashing
// with MQTT separators or wildcards.
func ValidKey(id string) bool {
	if id == "" || strings.ContainsAny(id, "/+#") {
		return false
	}
	for _, part := range strings.Split(id, ".") {
		if part == "" {
			return false
		}
	}
	return true
}
