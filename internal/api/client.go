package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roombook/internal/metrics"
)

const pathLogin = "/auth/login"

// TokenSource supplies the bearer credential for outgoing requests.
type TokenSource interface {
	Credential() (string, bool)
}

// Client is the single point of outbound calls to the booking API. It does
// not retry: every failure goes straight back to the caller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

// New returns a client without a request timeout beyond the transport's own;
// pass a positive timeout to bound each request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var out LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, pathLogin, req, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login: response carried no access_token")
	}
	return out.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.doJSON(ctx, "register", http.MethodPost, "/users", req, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.doJSON(ctx, "list_users", http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_user", http.MethodDelete, "/users/"+idPath(id), nil, nil)
}

func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var out []Room
	if err := c.doJSON(ctx, "list_rooms", http.MethodGet, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRoom(ctx context.Context, in RoomInput) (Room, error) {
	var out Room
	if err := c.doJSON(ctx, "create_room", http.MethodPost, "/rooms", in, &out); err != nil {
		return Room{}, err
	}
	return out, nil
}

func (c *Client) UpdateRoom(ctx context.Context, id int64, patch RoomPatch) (Room, error) {
	var out Room
	if err := c.doJSON(ctx, "update_room", http.MethodPatch, "/rooms/"+idPath(id), patch, &out); err != nil {
		return Room{}, err
	}
	return out, nil
}

func (c *Client) DeleteRoom(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_room", http.MethodDelete, "/rooms/"+idPath(id), nil, nil)
}

// ListBookings returns every booking (admin).
func (c *Client) ListBookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := c.doJSON(ctx, "list_bookings", http.MethodGet, "/bookings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMyBookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := c.doJSON(ctx, "list_my_bookings", http.MethodGet, "/bookings/my", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRoomBookings returns the busy ranges of one room.
func (c *Client) ListRoomBookings(ctx context.Context, roomID int64) ([]BookingRange, error) {
	var out []BookingRange
	if err := c.doJSON(ctx, "list_room_bookings", http.MethodGet, "/bookings/room/"+idPath(roomID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (Booking, error) {
	var out Booking
	if err := c.doJSON(ctx, "create_booking", http.MethodPost, "/bookings", req, &out); err != nil {
		return Booking{}, err
	}
	return out, nil
}

func (c *Client) DeleteBooking(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_booking", http.MethodDelete, "/bookings/"+idPath(id), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, out any) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
			if code := StatusCode(err); code != 0 {
				outcome = strconv.Itoa(code/100) + "xx"
			}
		}
		metrics.ObserveRequest(op, outcome, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		if tok, ok := c.Tokens.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// an empty body is accepted for endpoints that answer 201/204 without one
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// errorMessage pulls message or error out of a JSON error body. message may
// be a string or a list of strings.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Message, &s); err == nil && s != "" {
		return s
	}
	var list []string
	if err := json.Unmarshal(body.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return body.Error
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}
