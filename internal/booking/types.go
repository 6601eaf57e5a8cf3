package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Domain identifies one booking category.
type Domain string

const (
	DomainFood               Domain = "food"
	DomainTicket             Domain = "ticket"
	DomainFasterbookFood     Domain = "fasterbook_food"
	DomainFasterbookMovie    Domain = "fasterbook_movie"
	DomainFasterbookBookings Domain = "fasterbook_bookings"
	DomainFasterbookMenu     Domain = "fasterbook_menu"
	DomainRestaurant         Domain = "restaurant"
	DomainHotel              Domain = "hotel"
	DomainFlight             Domain = "flight"
	DomainRide               Domain = "ride"
)

// Domains is the fixed enumeration of supported booking domains.
var Domains = []Domain{
	DomainFood,
	DomainTicket,
	DomainFasterbookFood,
	DomainFasterbookMovie,
	DomainFasterbookBookings,
	DomainFasterbookMenu,
	DomainRestaurant,
	DomainHotel,
	DomainFlight,
	DomainRide,
}

// Valid reports whether d is one of the enumerated domains.
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// Action is the structured description of a booking request, as extracted
// by the language service from the user's utterance.
type Action struct {
	Domain Domain            `json:"domain"`
	Params map[string]string `json:"parameters,omitempty"`
}

// Param returns the trimmed parameter value, or def when absent.
func (a Action) Param(key, def string) string {
	if v := strings.TrimSpace(a.Params[key]); v != "" {
		return v
	}
	return def
}

// Reply is what a domain handler returns on success.
type Reply struct {
	DisplayText string
	Payload     Payload
}

// Handler performs one domain's booking. A nil Reply with a nil error means
// the action did not carry enough to act on.
type Handler interface {
	Handle(ctx context.Context, action Action, utterance string) (*Reply, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action Action, utterance string) (*Reply, error)

func (f HandlerFunc) Handle(ctx context.Context, action Action, utterance string) (*Reply, error) {
	return f(ctx, action, utterance)
}

// Payload is the structured order data attached to an assistant turn. The
// concrete type is fixed per domain; see Fits.
type Payload interface {
	payload()
}

// OrderItem is one line of a food order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// FoodOrder is the payload for food and fasterbook_food.
type FoodOrder struct {
	Confirmation      string      `json:"confirmation"`
	Restaurant        string      `json:"restaurant"`
	Items             []OrderItem `json:"items"`
	Total             float64     `json:"total"`
	DeliveryAddress   string      `json:"delivery_address,omitempty"`
	EstimatedDelivery time.Time   `json:"estimated_delivery"`
}

// TicketBooking is the payload for ticket and fasterbook_movie.
type TicketBooking struct {
	Confirmation string  `json:"confirmation"`
	Event        string  `json:"event"`
	Venue        string  `json:"venue,omitempty"`
	Date         string  `json:"date,omitempty"`
	Time         string  `json:"time,omitempty"`
	Quantity     int     `json:"quantity"`
	Total        float64 `json:"total"`
}

// OrderSummary is one past order in a BookingList.
type OrderSummary struct {
	Confirmation string    `json:"confirmation"`
	Domain       Domain    `json:"domain"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// BookingList is the payload for fasterbook_bookings.
type BookingList struct {
	Orders []OrderSummary `json:"orders"`
}

// MenuItem is one orderable item of a restaurant.
type MenuItem struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
}

// Menu is the payload for fasterbook_menu.
type Menu struct {
	Restaurant string     `json:"restaurant"`
	Items      []MenuItem `json:"items"`
}

// TableReservation is the payload for restaurant.
type TableReservation struct {
	Confirmation string `json:"confirmation"`
	Restaurant   string `json:"restaurant"`
	Date         string `json:"date,omitempty"`
	Time         string `json:"time,omitempty"`
	PartySize    int    `json:"party_size"`
}

// HotelBooking is the payload for hotel.
type HotelBooking struct {
	Confirmation string `json:"confirmation"`
	Location     string `json:"location"`
	CheckIn      string `json:"check_in,omitempty"`
	CheckOut     string `json:"check_out,omitempty"`
	Guests       int    `json:"guests"`
}

// FlightBooking is the payload for flight.
type FlightBooking struct {
	Confirmation string `json:"confirmation"`
	Origin       string `json:"origin,omitempty"`
	Destination  string `json:"destination"`
	Date         string `json:"date,omitempty"`
	Passengers   int    `json:"passengers"`
}

// RideBooking is the payload for ride.
type RideBooking struct {
	Confirmation string `json:"confirmation"`
	Pickup       string `json:"pickup,omitempty"`
	Destination  string `json:"destination"`
	ETAMinutes   int    `json:"eta_minutes"`
}

func (FoodOrder) payload()        {}
func (TicketBooking) payload()    {}
func (BookingList) payload()      {}
func (Menu) payload()             {}
func (TableReservation) payload() {}
func (HotelBooking) payload()     {}
func (FlightBooking) payload()    {}
func (RideBooking) payload()      {}

// Fits reports whether p has the payload type fixed for domain d.
func Fits(d Domain, p Payload) bool {
	switch p.(type) {
	case FoodOrder:
		return d == DomainFood || d == DomainFasterbookFood
	case TicketBooking:
		return d == DomainTicket || d == DomainFasterbookMovie
	case BookingList:
		return d == DomainFasterbookBookings
	case Menu:
		return d == DomainFasterbookMenu
	case TableReservation:
		return d == DomainRestaurant
	case HotelBooking:
		return d == DomainHotel
	case FlightBooking:
		return d == DomainFlight
	case RideBooking:
		return d == DomainRide
	}
	return false
}

// DecodePayload decodes data into the payload type fixed for domain d.
func DecodePayload(d Domain, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch d {
	case DomainFood, DomainFasterbookFood:
		p, err = decodeAs[FoodOrder](data)
	case DomainTicket, DomainFasterbookMovie:
		p, err = decodeAs[TicketBooking](data)
	case DomainFasterbookBookings:
		p, err = decodeAs[BookingList](data)
	case DomainFasterbookMenu:
		p, err = decodeAs[Menu](data)
	case DomainRestaurant:
		p, err = decodeAs[TableReservation](data)
	case DomainHotel:
		p, err = decodeAs[HotelBooking](data)
	case DomainFlight:
		p, err = decodeAs[FlightBooking](data)
	case DomainRide:
		p, err = decodeAs[RideBooking](data)
	default:
		return nil, fmt.Errorf("unknown booking domain %q", d)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", d, err)
	}
	return p, nil
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
