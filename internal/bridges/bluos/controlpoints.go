package bluos

import (
	"context"
	"errors"
	"fmt"

	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// controlPoint is the definition of one key created under each device.
type controlPoint struct {
	name   string
	common state.Common
}

// controlPoints lists every key provisioned for a device, in creation order.
var controlPoints = []controlPoint{
	{PointPlay, button("Play")},
	{PointSkip, button("Skip")},
	{PointBack, button("Back")},
	{PointPause, button("Pause")},
	{PointVolume, state.Common{
		Name:  "Volume",
		Role:  "level.volume",
		Type:  state.ValueNumber,
		Read:  true,
		Write: true,
		Def:   defaultVolume,
	}},
	{PointStatus, state.Common{
		Name:  "Status",
		Role:  "media.status",
		Type:  state.ValueString,
		Read:  true,
		Write: false,
	}},
	{PointOnline, state.Common{
		Name:  "Online",
		Role:  "indicator.reachable",
		Type:  state.ValueBoolean,
		Read:  true,
		Write: false,
	}},
}

const defaultVolume = 50

func button(name string) state.Common {
	return state.Common{
		Name:  name,
		Role:  "button",
		Type:  state.ValueBoolean,
		Read:  false,
		Write: true,
		Def:   false,
	}
}

// ProvisionDevice creates the control points of device that do not exist
// yet. Existing keys keep their definition and value.
//
// Every point is attempted; the returned error joins the failures.
func ProvisionDevice(ctx context.Context, store Store, keys Keys, device string) (created int, err error) {
	var errs []error
	for _, cp := range controlPoints {
		obj := &state.Object{Type: state.TypeState, Common: cp.common}
		ok, cerr := store.SetObjectNotExists(ctx, keys.ControlPoint(device, cp.name), obj)
		if cerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cp.name, cerr))
			continue
		}
		if ok {
			created++
		}
	}
	return created, errors.Join(errs...)
}

// RemoveDevice deletes the control points of device. Missing keys are
// skipped.
func RemoveDevice(ctx context.Context, store Store, keys Keys, device string) error {
	var errs []error
	for _, cp := range controlPoints {
		if err := store.DeleteObject(ctx, keys.ControlPoint(device, cp.name)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cp.name, err))
		}
	}
	return errors.Join(errs...)
}
