package bluos

import (
	"strings"
)

// Device is one configured BluOS player.
type Device struct {
	// Name is unique among devices and is a key segment in the store.
	Name string `json:"name"`

	// IP is the host (optionally host:port) the player's HTTP API listens on.
	IP string `json:"ip"`
}

// Group is a named set of device names. Groups are stored and exposed but
// do not drive any behaviour yet.
type Group struct {
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// Command is a playback command understood by the player's /Play endpoint.
type Command string

// Playback commands.
const (
	CommandPlay  Command = "play"
	CommandSkip  Command = "skip"
	CommandBack  Command = "back"
	CommandPause Command = "pause"
)

// Valid reports whether c is one of the playback commands.
func (c Command) Valid() bool {
	switch c {
	case CommandPlay, CommandSkip, CommandBack, CommandPause:
		return true
	}
	return false
}

// Control point names under each device key.
const (
	PointPlay   = "Play"
	PointSkip   = "Skip"
	PointBack   = "Back"
	PointPause  = "Pause"
	PointVolume = "Volume"
	PointStatus = "Status"
	PointOnline = "Online"
)

// buttonCommands maps a momentary button to the command it sends.
var buttonCommands = map[string]Command{
	PointPlay:  CommandPlay,
	PointSkip:  CommandSkip,
	PointBack:  CommandBack,
	PointPause: CommandPause,
}

// Keys builds store keys under an adapter namespace such as "bluos.0".
type Keys struct {
	Namespace string
}

// Root is the prefix every device key lives under.
func (k Keys) Root() string {
	return k.Namespace + ".BluOS"
}

// Devices is the configuration entry holding the device list.
func (k Keys) Devices() string {
	return k.Root() + ".Devices"
}

// Groups is the configuration entry holding the group list.
func (k Keys) Groups() string {
	return k.Root() + ".Groups"
}

// Connection is the adapter's connection indicator.
func (k Keys) Connection() string {
	return k.Namespace + ".info.connection"
}

// ControlPoint is the key of point on device.
func (k Keys) ControlPoint(device, point string) string {
	return k.Root() + "." + device + "." + point
}

// Subtree matches every key below Root.
func (k Keys) Subtree() string {
	return k.Root() + ".*"
}

// ParseControlPoint splits a control point key into device and point.
// The point is the last segment, so device names may contain dots.
func (k Keys) ParseControlPoint(id string) (device, point string, ok bool) {
	rest, found := strings.CutPrefix(id, k.Root()+".")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
