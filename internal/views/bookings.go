package views

import (
	"context"
	"fmt"
	"sync"

	"roombook/internal/api"
	"roombook/internal/metrics"
	"roombook/internal/mq"
)

type Scope int

const (
	Mine Scope = iota
	All
)

func (s Scope) String() string {
	if s == All {
		return "all"
	}
	return "mine"
}

type BookingsAPI interface {
	ListBookings(ctx context.Context) ([]api.Booking, error)
	ListMyBookings(ctx context.Context) ([]api.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

// Bookings is either the caller's own bookings or, for admins, all of them.
type Bookings struct {
	api   BookingsAPI
	scope Scope
	options

	mu       sync.RWMutex
	bookings []api.Booking
}

func NewBookings(a BookingsAPI, scope Scope, opts ...Option) *Bookings {
	return &Bookings{api: a, scope: scope, options: buildOptions(opts)}
}

func (m *Bookings) Scope() Scope { return m.scope }

func (m *Bookings) Load(ctx context.Context) ([]api.Booking, error) {
	var (
		list []api.Booking
		err  error
	)
	if m.scope == All {
		list, err = m.api.ListBookings(ctx)
	} else {
		list, err = m.api.ListMyBookings(ctx)
	}
	if err != nil {
		m.logger.Printf("list bookings scope=%s: %v", m.scope, err)
		return nil, err
	}
	m.mu.Lock()
	m.bookings = list
	m.mu.Unlock()
	return m.Bookings(), nil
}

func (m *Bookings) Bookings() []api.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]api.Booking(nil), m.bookings...)
}

// Delete cancels a booking after confirm approves it.
func (m *Bookings) Delete(ctx context.Context, id int64, confirm Confirm) error {
	prompt := fmt.Sprintf("Cancel booking %d?", id)
	if m.scope == All {
		prompt = fmt.Sprintf("Delete booking %d?", id)
	}
	if err := confirmed(ctx, confirm, prompt); err != nil {
		return err
	}
	if err := m.api.DeleteBooking(ctx, id); err != nil {
		m.logger.Printf("delete booking id=%d: %v", id, err)
		return err
	}
	metrics.IncBookingCanceled()

	roomID, _ := m.Forget(id)
	m.events.Publish(mq.TopicBookingDeleted, mq.NewEvent("booking_deleted", roomID, id, nil))
	return nil
}

// Forget drops a booking from the held list without calling the API, for a
// booking deleted through another list. It reports the booking's room.
func (m *Bookings) Forget(id int64) (roomID int64, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.bookings[:0:0]
	for _, b := range m.bookings {
		if b.ID == id {
			found = true
			if b.Room != nil {
				roomID = b.Room.ID
			}
			continue
		}
		out = append(out, b)
	}
	m.bookings = out
	return roomID, found
}
