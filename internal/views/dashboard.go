package views

import (
	"context"

	"roombook/internal/api"
	"roombook/internal/availability"
)

// Dashboard is the landing view: every room with its busy days.
type Dashboard struct {
	Rooms        *Rooms
	Availability *availability.Engine
}

// RoomCard is one room as the dashboard shows it.
type RoomCard struct {
	Room      api.Room               `json:"room" yaml:"room"`
	Busy      []availability.Range   `json:"busy" yaml:"busy"`
	Selection availability.Selection `json:"selection" yaml:"selection"`
	State     string                 `json:"selection_state" yaml:"selection_state"`
}

// Load lists rooms, then fetches each room's busy ranges independently. A
// room whose ranges could not be fetched is still listed; its error is in
// the returned map.
func (d *Dashboard) Load(ctx context.Context) ([]RoomCard, map[int64]error, error) {
	rooms, err := d.Rooms.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	failed := d.Availability.RefreshAll(ctx, ids)
	return d.Cards(), failed, nil
}

// Cards renders the held rooms without fetching anything.
func (d *Dashboard) Cards() []RoomCard {
	rooms := d.Rooms.Rooms()
	out := make([]RoomCard, 0, len(rooms))
	for _, r := range rooms {
		sel := d.Availability.Selection(r.ID)
		out = append(out, RoomCard{
			Room:      r,
			Busy:      d.Availability.BusyRanges(r.ID),
			Selection: sel,
			State:     sel.State().String(),
		})
	}
	return out
}

// DeleteRoom removes the room and drops its cached availability.
func (d *Dashboard) DeleteRoom(ctx context.Context, id int64, confirm Confirm) error {
	if err := d.Rooms.Delete(ctx, id, confirm); err != nil {
		return err
	}
	d.Availability.Forget(id)
	return nil
}
