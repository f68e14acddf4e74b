// Package bluos implements the BluOS player bridge.
//
// The bridge keeps a list of BluOS players in the state store, creates a
// set of control points for each one, polls each player's status and turns
// writes to the control points into HTTP calls on the player.
//
// # Architecture
//
//	┌─────────────────┐  changes   ┌─────────────────┐   HTTP    ┌──────────┐
//	│   State Store   │◄──────────►│   BluOS Bridge  │◄─────────►│  Player  │
//	│                 │   writes   │   (this pkg)    │   :11000  │          │
//	└─────────────────┘            └─────────────────┘           └──────────┘
//
// # Keys
//
// With namespace "bluos.0":
//
//	bluos.0.info.connection       adapter connection indicator
//	bluos.0.BluOS.Devices         device list, common.default = [{"name","ip"},...]
//	bluos.0.BluOS.Groups          group list,  common.default = [{"name","devices"},...]
//	bluos.0.BluOS.<device>.Play   button (also Skip, Back, Pause)
//	bluos.0.BluOS.<device>.Volume number
//	bluos.0.BluOS.<device>.Status last status body, read-only
//	bluos.0.BluOS.<device>.Online reachability, read-only
//
// # Commands
//
// Only writes with ack=false are commands. Writing true to a button sends
// the matching playback command and resets the button. Writing a number to
// Volume sets the volume and acknowledges the value. Everything the bridge
// writes itself carries ack=true, so it never reacts to its own output.
//
// # Polling
//
// Each device has its own loop fetching GET /Status once per poll interval.
// Loops follow the device list: adding a device starts one, removing it
// stops it. A failed poll is logged, counted and marks the device offline;
// the loop carries on.
package bluos
