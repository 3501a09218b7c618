package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombook/internal/api"
	"roombook/internal/availability"
	"roombook/internal/config"
	"roombook/internal/session"
	"roombook/internal/storage"
	"roombook/internal/views"
)

const usage = `usage: roombook [-o text|json|yaml] [-y] [-v] <command> [args]

session:
  login -u USER [-p PASS]     log in (password read from stdin when -p is omitted)
  logout                      forget the stored credential
  register -u USER -p PASS    create an account
  whoami                      show role and available controls

rooms and bookings:
  rooms                       list rooms with their busy dates
  busy ROOM                   show busy date ranges of a room
  book ROOM START END         book a room, dates as YYYY-MM-DD
  my                          list your bookings
  cancel BOOKING              cancel a booking

admin:
  bookings                    list every booking
  users                       list users
  deluser USER_ID             delete a user
  room-add -name N -price P [-desc D]
  room-edit ROOM [-name N] [-desc D] [-price P] [-status S]
  room-del ROOM
`

// env is everything a run touches outside the process, so tests can swap it.
type env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config config.CLIConfig
	State  storage.Storage // overrides Config.State when set
	Now    func() time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: config.LoadCLI(),
	}))
}

type app struct {
	out     *printer
	stderr  io.Writer
	in      *bufio.Reader
	yes     bool
	logger  *log.Logger
	session *session.Store
	client  *api.Client
	engine  *availability.Engine
}

func run(ctx context.Context, args []string, e env) int {
	fs := flag.NewFlagSet("roombook", flag.ContinueOnError)
	fs.SetOutput(e.Stderr)
	fs.Usage = func() { fmt.Fprint(e.Stderr, usage) }
	format := fs.String("o", "text", "output format: text, json or yaml")
	yes := fs.Bool("y", false, "answer yes to delete confirmations")
	verbose := fs.Bool("v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	out, err := newPrinter(e.Stdout, *format)
	if err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 2
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(e.Stderr, "[roombook] ", log.LstdFlags|log.Lmicroseconds)
	}

	state := e.State
	if state == nil {
		st, closer, err := storage.Open(ctx, e.Config.State)
		if err != nil {
			fmt.Fprintf(e.Stderr, "error: %v\n", err)
			return 1
		}
		defer closer.Close()
		state = st
	}

	client := api.New(e.Config.API.BaseURL, e.Config.API.Timeout)
	store, err := session.NewStore(ctx, state, client, logger)
	if err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 1
	}
	client.Tokens = store

	opts := []availability.Option{availability.WithConcurrency(e.Config.RefreshConcurrency)}
	if e.Now != nil {
		opts = append(opts, availability.WithClock(e.Now))
	}

	a := &app{
		out:     out,
		stderr:  e.Stderr,
		in:      bufio.NewReader(e.Stdin),
		yes:     *yes,
		logger:  logger,
		session: store,
		client:  client,
		engine:  availability.New(client, logger, opts...),
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(e.Stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}
	if cmd.auth && !store.IsAuthenticated() {
		fmt.Fprintln(e.Stderr, "error: not logged in; run roombook login")
		return 1
	}
	if cmd.admin && !store.Role().IsAdmin() {
		fmt.Fprintln(e.Stderr, "error: admin only")
		return 1
	}

	if err := cmd.run(ctx, a, rest); err != nil {
		return a.fail(err)
	}
	return 0
}

var errUsage = errors.New("usage")

func (a *app) fail(err error) int {
	if errors.Is(err, errUsage) {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 2
	}
	switch views.ErrorKind(err) {
	case "invalid_credentials":
		fmt.Fprintln(a.stderr, "error: invalid username or password")
	case "declined":
		fmt.Fprintln(a.stderr, "cancelled")
	case "network":
		fmt.Fprintf(a.stderr, "error: booking API unreachable: %v\n", err)
	default:
		fmt.Fprintf(a.stderr, "error: %v\n", err)
	}
	return 1
}

// confirm prompts on stderr and reads one line from stdin. -y skips it.
func (a *app) confirm(_ context.Context, prompt string) (bool, error) {
	if a.yes {
		return true, nil
	}
	fmt.Fprintf(a.stderr, "%s [y/N]: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch trimLine(line) {
	case "y", "Y", "yes", "YES":
		return true, nil
	}
	return false, nil
}
