package bluos

import "testing"

func TestKeys(t *testing.T) {
	k := Keys{Namespace: "bluos.0"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"root", k.Root(), "bluos.0.BluOS"},
		{"devices", k.Devices(), "bluos.0.BluOS.Devices"},
		{"groups", k.Groups(), "bluos.0.BluOS.Groups"},
		{"connection", k.Connection(), "bluos.0.info.connection"},
		{"control point", k.ControlPoint("Den", PointPlay), "bluos.0.BluOS.Den.Play"},
		{"subtree", k.Subtree(), "bluos.0.BluOS.*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKeys_ParseControlPoint(t *testing.T) {
	k := Keys{Namespace: "bluos.0"}

	tests := []struct {
		id         string
		wantDevice string
		wantPoint  string
		wantOK     bool
	}{
		{"bluos.0.BluOS.Den.Play", "Den", "Play", true},
		{"bluos.0.BluOS.Living.Room.Volume", "Living.Room", "Volume", true},
		{"bluos.0.BluOS.Devices", "", "", false},
		{"bluos.0.BluOS.Den.", "", "", false},
		{"bluos.1.BluOS.Den.Play", "", "", false},
		{"bluos.0.info.connection", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			device, point, ok := k.ParseControlPoint(tt.id)
			if ok != tt.wantOK || device != tt.wantDevice || point != tt.wantPoint {
				t.Errorf("ParseControlPoint(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.id, device, point, ok, tt.wantDevice, tt.wantPoint, tt.wantOK)
			}
		})
	}
}

func TestCommand_Valid(t *testing.T) {
	for _, c := range []Command{CommandPlay, CommandSkip, CommandBack, CommandPause} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Command{"", "stop", "PLAY"} {
		if c.Valid() {
			t.Errorf("%q should not be valid", c)
		}
	}
}
