package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"roombook/internal/api"
	"roombook/internal/availability"
	"roombook/internal/role"
	"roombook/internal/validation"
	"roombook/internal/views"
)

type command struct {
	auth  bool
	admin bool
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":    {run: cmdLogin},
	"logout":   {run: cmdLogout},
	"register": {run: cmdRegister},
	"whoami":   {run: cmdWhoami},

	"rooms":  {auth: true, run: cmdRooms},
	"busy":   {auth: true, run: cmdBusy},
	"book":   {auth: true, run: cmdBook},
	"my":     {auth: true, run: cmdMyBookings},
	"cancel": {auth: true, run: cmdCancel},

	"bookings":  {auth: true, admin: true, run: cmdAllBookings},
	"users":     {auth: true, admin: true, run: cmdUsers},
	"deluser":   {auth: true, admin: true, run: cmdDeleteUser},
	"room-add":  {auth: true, admin: true, run: cmdRoomAdd},
	"room-edit": {auth: true, admin: true, run: cmdRoomEdit},
	"room-del":  {auth: true, admin: true, run: cmdRoomDelete},
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// positional checks that at least len(want) arguments were given.
func positional(name string, args []string, want ...string) error {
	if len(args) < len(want) {
		return fmt.Errorf("%w: %s %s", errUsage, name, strings.Join(want, " "))
	}
	return nil
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", errUsage, kind, s)
	}
	return id, nil
}

func (a *app) viewOpts() []views.Option {
	return []views.Option{views.WithLogger(a.logger)}
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *username != "" && *password == "" {
		fmt.Fprint(a.stderr, "Password: ")
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		*password = trimLine(line)
	}

	v := validation.New()
	if *username == "" {
		v.Add("username", "required")
	}
	if *password == "" {
		v.Add("password", "required")
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := a.session.Login(ctx, *username, *password); err != nil {
		return err
	}
	r := a.session.Role()
	return a.out.status(fmt.Sprintf("logged in as %s (%s)", *username, r), map[string]any{
		"username": *username,
		"role":     r,
	})
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	return a.out.status("logged out", nil)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := a.flags("register")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := views.Register(ctx, a.client, *username, *password); err != nil {
		return err
	}
	return a.out.status(fmt.Sprintf("registered %s; run roombook login", *username), map[string]any{
		"username": *username,
	})
}

type whoami struct {
	Authenticated bool             `json:"authenticated" yaml:"authenticated"`
	Username      string           `json:"username,omitempty" yaml:"username,omitempty"`
	Role          role.Role        `json:"role,omitempty" yaml:"role,omitempty"`
	Affordances   role.Affordances `json:"affordances" yaml:"affordances"`
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	cred, ok := a.session.Credential()
	if !ok {
		return a.out.emit(whoami{}, func(w io.Writer) { fmt.Fprintln(w, "not logged in") })
	}
	r := a.session.Role()
	me := whoami{Authenticated: true, Role: r, Affordances: r.Affordances()}
	if c, err := role.Decode(cred); err == nil {
		me.Username = c.Username
	}
	return a.out.emit(me, func(w io.Writer) {
		fmt.Fprintf(w, "user\t%s\n", me.Username)
		fmt.Fprintf(w, "role\t%s\n", me.Role)
		fmt.Fprintf(w, "manage rooms\t%t\n", me.Affordances.ManageRooms)
		fmt.Fprintf(w, "all bookings\t%t\n", me.Affordances.AllBookings)
		fmt.Fprintf(w, "manage users\t%t\n", me.Affordances.ManageUsers)
	})
}

func cmdRooms(ctx context.Context, a *app, _ []string) error {
	d := &views.Dashboard{Rooms: views.NewRooms(a.client, a.viewOpts()...), Availability: a.engine}
	cards, failed, err := d.Load(ctx)
	if err != nil {
		return err
	}
	for id, ferr := range failed {
		fmt.Fprintf(a.stderr, "warning: busy dates of room %d unavailable: %v\n", id, ferr)
	}
	return a.out.emit(cards, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTATUS\tBUSY")
		for _, c := range cards {
			busy := formatRanges(c.Busy)
			if failed[c.Room.ID] != nil {
				busy = "unavailable"
			}
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\n", c.Room.ID, c.Room.Name, c.Room.Price, c.Room.Status, busy)
		}
	})
}

func cmdBusy(ctx context.Context, a *app, args []string) error {
	if err := positional("busy", args, "ROOM"); err != nil {
		return err
	}
	id, err := parseID("ROOM", args[0])
	if err != nil {
		return err
	}
	if err := a.engine.Refresh(ctx, id); err != nil {
		return err
	}
	ranges := a.engine.BusyRanges(id)
	return a.out.emit(map[string]any{"room_id": id, "busy": ranges}, func(w io.Writer) {
		if len(ranges) == 0 {
			fmt.Fprintf(w, "room %d has no bookings\n", id)
			return
		}
		for _, r := range ranges {
			fmt.Fprintf(w, "%s\t..\t%s\n", day(r.Start), day(r.End))
		}
	})
}

// cmdBook fills both bounds of the selection, runs the picker checks and
// submits.
func cmdBook(ctx context.Context, a *app, args []string) error {
	if err := positional("book", args, "ROOM", "START", "END"); err != nil {
		return err
	}
	id, err := parseID("ROOM", args[0])
	if err != nil {
		return err
	}
	v := validation.New()
	start, err := api.ParseDate(args[1])
	if err != nil {
		v.Add("start", "must be a date like 2006-01-02")
	}
	end, err := api.ParseDate(args[2])
	if err != nil {
		v.Add("end", "must be a date like 2006-01-02")
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := a.engine.Refresh(ctx, id); err != nil {
		return err
	}
	a.engine.SetSelectionBound(id, availability.Start, start)
	a.engine.SetSelectionBound(id, availability.End, end)
	if err := a.engine.Check(id); err != nil {
		return err
	}
	b, err := a.engine.Submit(ctx, id)
	if err != nil {
		return err
	}
	return a.out.emit(b, func(w io.Writer) {
		fmt.Fprintf(w, "booked room %d from %s to %s (booking %d)\n", id, day(start), day(end), b.ID)
	})
}

func cmdMyBookings(ctx context.Context, a *app, _ []string) error {
	return a.listBookings(ctx, views.Mine)
}

func cmdAllBookings(ctx context.Context, a *app, _ []string) error {
	return a.listBookings(ctx, views.All)
}

func (a *app) listBookings(ctx context.Context, scope views.Scope) error {
	list, err := views.NewBookings(a.client, scope, a.viewOpts()...).Load(ctx)
	if err != nil {
		return err
	}
	return a.out.emit(list, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tROOM\tCUSTOMER\tFROM\tTO")
		for _, b := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.RoomName(), b.Customer(), apiDay(b.StartDate), apiDay(b.EndDate))
		}
	})
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	if err := positional("cancel", args, "BOOKING"); err != nil {
		return err
	}
	id, err := parseID("BOOKING", args[0])
	if err != nil {
		return err
	}
	scope := views.Mine
	if a.session.Role().IsAdmin() {
		scope = views.All
	}
	if err := views.NewBookings(a.client, scope, a.viewOpts()...).Delete(ctx, id, a.confirm); err != nil {
		return err
	}
	return a.out.status(fmt.Sprintf("cancelled booking %d", id), map[string]any{"id": id})
}

func cmdUsers(ctx context.Context, a *app, _ []string) error {
	list, err := views.NewUsers(a.client, a.viewOpts()...).Load(ctx)
	if err != nil {
		return err
	}
	return a.out.emit(list, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tUSERNAME\tROLE")
		for _, u := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.Role)
		}
	})
}

func cmdDeleteUser(ctx context.Context, a *app, args []string) error {
	if err := positional("deluser", args, "USER_ID"); err != nil {
		return err
	}
	id, err := parseID("USER_ID", args[0])
	if err != nil {
		return err
	}
	m := views.NewUsers(a.client, a.viewOpts()...)
	list, err := m.Load(ctx)
	if err != nil {
		return err
	}
	var target *api.User
	for i := range list {
		if list[i].ID == id {
			target = &list[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no user with id %d", id)
	}
	if !views.CanDelete(*target) {
		return fmt.Errorf("user %s is an admin and cannot be deleted", target.Username)
	}
	if err := m.Delete(ctx, id, a.confirm); err != nil {
		return err
	}
	return a.out.status(fmt.Sprintf("deleted user %s", target.Username), map[string]any{"id": id})
}

func cmdRoomAdd(ctx context.Context, a *app, args []string) error {
	fs := a.flags("room-add")
	name := fs.String("name", "", "room name")
	desc := fs.String("desc", "", "description")
	price := fs.Float64("price", 0, "price per night")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	room, err := views.NewRooms(a.client, a.viewOpts()...).Create(ctx, api.RoomInput{Name: *name, Description: *desc, Price: *price})
	if err != nil {
		return err
	}
	return a.out.emit(room, func(w io.Writer) {
		fmt.Fprintf(w, "created room %d (%s)\n", room.ID, room.Name)
	})
}

// cmdRoomEdit sends only the flags given on the command line.
func cmdRoomEdit(ctx context.Context, a *app, args []string) error {
	if err := positional("room-edit", args, "ROOM"); err != nil {
		return err
	}
	id, err := parseID("ROOM", args[0])
	if err != nil {
		return err
	}
	fs := a.flags("room-edit")
	name := fs.String("name", "", "room name")
	desc := fs.String("desc", "", "description")
	price := fs.Float64("price", 0, "price per night")
	status := fs.String("status", "", "room status")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	var patch api.RoomPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.Name = name
		case "desc":
			patch.Description = desc
		case "price":
			patch.Price = price
		case "status":
			patch.Status = status
		}
	})

	room, err := views.NewRooms(a.client, a.viewOpts()...).Update(ctx, id, patch)
	if err != nil {
		return err
	}
	return a.out.emit(room, func(w io.Writer) {
		fmt.Fprintf(w, "updated room %d (%s)\n", room.ID, room.Name)
	})
}

func cmdRoomDelete(ctx context.Context, a *app, args []string) error {
	if err := positional("room-del", args, "ROOM"); err != nil {
		return err
	}
	id, err := parseID("ROOM", args[0])
	if err != nil {
		return err
	}
	if err := views.NewRooms(a.client, a.viewOpts()...).Delete(ctx, id, a.confirm); err != nil {
		return err
	}
	return a.out.status(fmt.Sprintf("deleted room %d", id), map[string]any{"id": id})
}

func formatRanges(rs []availability.Range) string {
	if len(rs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, day(r.Start)+".."+day(r.End))
	}
	return strings.Join(parts, ", ")
}
