package views

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"roombook/internal/api"
	"roombook/internal/mq"
	"roombook/internal/validation"
)

type RoomsAPI interface {
	ListRooms(ctx context.Context) ([]api.Room, error)
	CreateRoom(ctx context.Context, in api.RoomInput) (api.Room, error)
	UpdateRoom(ctx context.Context, id int64, patch api.RoomPatch) (api.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
}

// Rooms is the room list. Mutations are admin-only on the API side.
type Rooms struct {
	api RoomsAPI
	options

	mu    sync.RWMutex
	rooms []api.Room
}

func NewRooms(a RoomsAPI, opts ...Option) *Rooms {
	return &Rooms{api: a, options: buildOptions(opts)}
}

func (m *Rooms) Load(ctx context.Context) ([]api.Room, error) {
	rooms, err := m.api.ListRooms(ctx)
	if err != nil {
		m.logger.Printf("list rooms: %v", err)
		return nil, err
	}
	m.mu.Lock()
	m.rooms = rooms
	m.mu.Unlock()
	return m.Rooms(), nil
}

func (m *Rooms) Rooms() []api.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]api.Room(nil), m.rooms...)
}

func (m *Rooms) Find(id int64) (api.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return api.Room{}, false
}

func (m *Rooms) Create(ctx context.Context, in api.RoomInput) (api.Room, error) {
	in.Name = strings.TrimSpace(in.Name)
	v := validation.New()
	if in.Name == "" {
		v.Add("name", "required")
	}
	if in.Price <= 0 {
		v.Add("price", "must be greater than 0")
	}
	if err := v.Err(); err != nil {
		return api.Room{}, err
	}

	room, err := m.api.CreateRoom(ctx, in)
	if err != nil {
		m.logger.Printf("create room name=%s: %v", in.Name, err)
		return api.Room{}, err
	}
	if room.ID == 0 {
		// created without a body; the new id is only known after a re-fetch
		room = m.reloadCreated(ctx, in)
	} else {
		m.mu.Lock()
		m.rooms = append(m.rooms, room)
		m.mu.Unlock()
	}

	m.events.Publish(mq.TopicRoomChanged, mq.NewEvent("room_created", room.ID, room.ID, room))
	return room, nil
}

func (m *Rooms) Update(ctx context.Context, id int64, patch api.RoomPatch) (api.Room, error) {
	v := validation.New()
	if patch.Empty() {
		v.Add("patch", "nothing to change")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		v.Add("name", "must not be blank")
	}
	if patch.Price != nil && *patch.Price < 0 {
		v.Add("price", "must not be negative")
	}
	if err := v.Err(); err != nil {
		return api.Room{}, err
	}

	room, err := m.api.UpdateRoom(ctx, id, patch)
	if err != nil {
		m.logger.Printf("update room id=%d: %v", id, err)
		return api.Room{}, err
	}
	m.mu.Lock()
	for i := range m.rooms {
		if m.rooms[i].ID != id {
			continue
		}
		if room.ID == 0 {
			// updated without a body
			room = applyPatch(m.rooms[i], patch)
		}
		m.rooms[i] = room
	}
	m.mu.Unlock()
	if room.ID == 0 {
		room.ID = id
	}

	m.events.Publish(mq.TopicRoomChanged, mq.NewEvent("room_updated", id, id, room))
	return room, nil
}

// reloadCreated re-fetches the list after a create that returned no room and
// picks the newest room carrying the submitted name.
func (m *Rooms) reloadCreated(ctx context.Context, in api.RoomInput) api.Room {
	fallback := api.Room{Name: in.Name, Description: in.Description, Price: in.Price}
	rooms, err := m.Load(ctx)
	if err != nil {
		return fallback
	}
	for i := len(rooms) - 1; i >= 0; i-- {
		if rooms[i].Name == in.Name {
			return rooms[i]
		}
	}
	return fallback
}

func applyPatch(r api.Room, p api.RoomPatch) api.Room {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

// Delete asks confirm first and sends nothing unless it says yes.
func (m *Rooms) Delete(ctx context.Context, id int64, confirm Confirm) error {
	if err := confirmed(ctx, confirm, fmt.Sprintf("Delete room %d?", id)); err != nil {
		return err
	}
	if err := m.api.DeleteRoom(ctx, id); err != nil {
		m.logger.Printf("delete room id=%d: %v", id, err)
		return err
	}
	m.mu.Lock()
	m.rooms = removeRoom(m.rooms, id)
	m.mu.Unlock()

	m.events.Publish(mq.TopicRoomChanged, mq.NewEvent("room_deleted", id, id, nil))
	return nil
}

func removeRoom(rooms []api.Room, id int64) []api.Room {
	out := rooms[:0:0]
	for _, r := range rooms {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
