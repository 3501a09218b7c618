// Package availability tracks which days each room is busy and the date
// range a user is selecting for a new booking.
package availability

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"roombook/internal/api"
	"roombook/internal/metrics"
	"roombook/internal/mq"
	"roombook/internal/validation"
)

type Gateway interface {
	ListRoomBookings(ctx context.Context, roomID int64) ([]api.BookingRange, error)
	CreateBooking(ctx context.Context, req api.CreateBookingRequest) (api.Booking, error)
}

type Engine struct {
	gw          Gateway
	logger      *log.Logger
	now         func() time.Time
	events      mq.Publisher
	concurrency int

	busy *BusyCache
	sel  *Selections
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p mq.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithConcurrency bounds the fetches RefreshAll runs at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

func New(gw Gateway, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		gw:          gw,
		logger:      logger,
		now:         time.Now,
		events:      mq.Nop{},
		concurrency: 4,
		busy:        NewBusyCache(),
		sel:         NewSelections(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today is the first day a selection may start on.
func (e *Engine) Today() time.Time {
	return api.Day(e.now())
}

// Refresh replaces the cached busy ranges of one room. On failure the
// previous ranges stay in place.
func (e *Engine) Refresh(ctx context.Context, roomID int64) error {
	raw, err := e.gw.ListRoomBookings(ctx, roomID)
	if err != nil {
		return fmt.Errorf("refresh room=%d: %w", roomID, err)
	}

	ranges := make([]Range, 0, len(raw))
	for _, br := range raw {
		start, err1 := api.ParseDate(br.StartDate)
		end, err2 := api.ParseDate(br.EndDate)
		if err1 != nil || err2 != nil {
			e.logger.Printf("refresh room=%d: skipping unreadable range %q..%q", roomID, br.StartDate, br.EndDate)
			continue
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	e.busy.Set(roomID, ranges)
	return nil
}

// RefreshAll refreshes every room independently; one room failing does not
// stop the others. The result holds an entry per failed room.
func (e *Engine) RefreshAll(ctx context.Context, roomIDs []int64) map[int64]error {
	var (
		mu   sync.Mutex
		errs = map[int64]error{}
		g    errgroup.Group
	)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, id := range roomIDs {
		id := id
		g.Go(func() error {
			if err := e.Refresh(ctx, id); err != nil {
				e.logger.Printf("%v", err)
				mu.Lock()
				errs[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (e *Engine) BusyRanges(roomID int64) []Range {
	rs, _ := e.busy.Get(roomID)
	return rs
}

// IsBusy reports whether day falls inside any cached range of the room,
// first and last day included.
func (e *Engine) IsBusy(roomID int64, day time.Time) bool {
	d := api.Day(day)
	rs, _ := e.busy.Get(roomID)
	for _, r := range rs {
		if r.Contains(d) {
			return true
		}
	}
	return false
}

// Forget drops everything held for a room, e.g. after it was deleted.
func (e *Engine) Forget(roomID int64) {
	e.busy.Clear(roomID)
	e.sel.Clear(roomID)
}

func (e *Engine) Selection(roomID int64) Selection {
	return e.sel.Get(roomID)
}

// SetSelectionBound overwrites one bound. The date is not checked here; see
// Selectable and Check.
func (e *Engine) SetSelectionBound(roomID int64, b Bound, day time.Time) Selection {
	d := api.Day(day)
	return e.sel.update(roomID, func(s Selection) Selection {
		if b == End {
			s.End = d
		} else {
			s.Start = d
		}
		return s
	})
}

func (e *Engine) Reset(roomID int64) {
	e.sel.Clear(roomID)
}

// Selectable mirrors the date picker: no past days, no busy days, and an end
// not before the chosen start.
func (e *Engine) Selectable(roomID int64, b Bound, day time.Time) bool {
	d := api.Day(day)
	if d.Before(e.Today()) || e.IsBusy(roomID, d) {
		return false
	}
	if b == End {
		if s := e.sel.Get(roomID); !s.Start.IsZero() && d.Before(s.Start) {
			return false
		}
	}
	return true
}

// Check reports what a front end should flag before submitting. The API
// remains the authority on overlaps.
func (e *Engine) Check(roomID int64) error {
	s := e.sel.Get(roomID)
	v := missingBounds(s)
	if v.HasErrors() {
		return v
	}
	if s.Start.Before(e.Today()) {
		v.Add("start", "must not be in the past")
	}
	if s.End.Before(s.Start) {
		v.Add("end", "must not be before start")
	}
	want := s.Range()
	for _, r := range e.BusyRanges(roomID) {
		if r.Overlaps(want) {
			v.Add("dates", fmt.Sprintf("overlap a booking from %s to %s",
				r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")))
			break
		}
	}
	return v.Err()
}

// Submit books the selected range. Without both bounds it fails with a
// validation error and sends nothing. On success the selection is cleared
// and the room's busy ranges are fetched again.
func (e *Engine) Submit(ctx context.Context, roomID int64) (api.Booking, error) {
	s := e.sel.Get(roomID)
	if v := missingBounds(s); v.HasErrors() {
		metrics.IncBookingSubmitted("invalid")
		return api.Booking{}, v
	}

	b, err := e.gw.CreateBooking(ctx, api.CreateBookingRequest{
		RoomID:    roomID,
		StartDate: api.FormatDate(s.Start),
		EndDate:   api.FormatDate(s.End),
	})
	if err != nil {
		metrics.IncBookingSubmitted("failed")
		e.logger.Printf("submit booking room=%d: %v", roomID, err)
		return api.Booking{}, fmt.Errorf("submit booking room=%d: %w", roomID, err)
	}
	metrics.IncBookingSubmitted("ok")
	e.sel.Clear(roomID)
	e.events.Publish(mq.TopicBookingCreated, mq.NewEvent("booking_created", roomID, b.ID, s.Range()))

	if err := e.Refresh(ctx, roomID); err != nil {
		e.logger.Printf("booking %d created but %v", b.ID, err)
	}
	return b, nil
}

func missingBounds(s Selection) *validation.Error {
	v := validation.New()
	if s.Start.IsZero() {
		v.Add("start", "select a check-in date")
	}
	if s.End.IsZero() {
		v.Add("end", "select a check-out date")
	}
	return v
}
