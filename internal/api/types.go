package api

type User struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Role     string `json:"role" yaml:"role"`
}

type Room struct {
	ID          int64   `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"` // per night
	Status      string  `json:"status" yaml:"status"`
}

// Booking dates are kept as sent by the API; use ParseDate to compare them.
type Booking struct {
	ID        int64  `json:"id" yaml:"id"`
	StartDate string `json:"startDate" yaml:"start_date"`
	EndDate   string `json:"endDate" yaml:"end_date"`
	Room      *Room  `json:"room,omitempty" yaml:"room,omitempty"`
	User      *User  `json:"user,omitempty" yaml:"user,omitempty"`
}

// Customer is the booking owner's username, or "-" when the API omitted it.
func (b Booking) Customer() string {
	if b.User == nil || b.User.Username == "" {
		return "-"
	}
	return b.User.Username
}

func (b Booking) RoomName() string {
	if b.Room == nil {
		return ""
	}
	return b.Room.Name
}

type BookingRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RoomInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// RoomPatch sends only the fields that are set.
type RoomPatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

func (p RoomPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Status == nil
}

type CreateBookingRequest struct {
	RoomID    int64  `json:"roomId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}
