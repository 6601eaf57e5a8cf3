package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/aura/internal/storage"
)

// Parameter keys understood by the default handlers.
const (
	ParamRestaurant  = "restaurant"
	ParamItem        = "item"
	ParamQuantity    = "quantity"
	ParamAddress     = "address"
	ParamEvent       = "event"
	ParamVenue       = "venue"
	ParamDate        = "date"
	ParamTime        = "time"
	ParamPartySize   = "party_size"
	ParamLocation    = "location"
	ParamCheckIn     = "check_in"
	ParamCheckOut    = "check_out"
	ParamGuests      = "guests"
	ParamOrigin      = "origin"
	ParamDestination = "destination"
	ParamPassengers  = "passengers"
	ParamPickup      = "pickup"
)

// ParamDescriptions documents every parameter for the action extraction schema.
var ParamDescriptions = map[string]string{
	ParamRestaurant:  "Restaurant name or cuisine",
	ParamItem:        "Dish or menu item to order",
	ParamQuantity:    "Number of items or tickets",
	ParamAddress:     "Delivery address",
	ParamEvent:       "Event, concert or movie title",
	ParamVenue:       "Venue or cinema",
	ParamDate:        "Date of the booking as written by the user",
	ParamTime:        "Time of the booking as written by the user",
	ParamPartySize:   "Number of people for a table",
	ParamLocation:    "City or area for a hotel",
	ParamCheckIn:     "Hotel check-in date",
	ParamCheckOut:    "Hotel check-out date",
	ParamGuests:      "Number of hotel guests",
	ParamOrigin:      "Departure city or airport",
	ParamDestination: "Destination city, airport or address",
	ParamPassengers:  "Number of passengers",
	ParamPickup:      "Ride pickup address",
}

var ticketPrices = map[Domain]float64{
	DomainTicket:          45.00,
	DomainFasterbookMovie: 12.50,
}

const (
	deliveryWindow = 35 * time.Minute
	recentBookings = 10
)

// OrderStore persists confirmed orders.
type OrderStore interface {
	SaveOrder(o storage.Order) error
	ListOrders(limit, offset int) ([]storage.Order, error)
}

// Service implements the default handler for every domain on top of an
// order store and a menu catalog.
type Service struct {
	store   OrderStore
	catalog Catalog
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(store OrderStore, catalog Catalog) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// Handlers returns one handler per enumerated domain.
func (s *Service) Handlers() map[Domain]Handler {
	return map[Domain]Handler{
		DomainFood:               HandlerFunc(s.orderFood),
		DomainFasterbookFood:     HandlerFunc(s.orderFood),
		DomainTicket:             HandlerFunc(s.bookTicket),
		DomainFasterbookMovie:    HandlerFunc(s.bookTicket),
		DomainFasterbookBookings: HandlerFunc(s.listBookings),
		DomainFasterbookMenu:     HandlerFunc(s.showMenu),
		DomainRestaurant:         HandlerFunc(s.reserveTable),
		DomainHotel:              HandlerFunc(s.bookHotel),
		DomainFlight:             HandlerFunc(s.bookFlight),
		DomainRide:               HandlerFunc(s.bookRide),
	}
}

func (s *Service) orderFood(_ context.Context, a Action, _ string) (*Reply, error) {
	var rest *Restaurant
	if name := a.Param(ParamRestaurant, ""); name != "" {
		r, ok := s.catalog.Restaurant(name)
		if !ok {
			s.logger.Debug("food order for unknown restaurant", "restaurant", name)
			return nil, nil
		}
		rest = &r
	}
	r, item, ok := s.catalog.Item(rest, a.Param(ParamItem, ""))
	if !ok {
		return nil, nil
	}

	qty := intParam(a, ParamQuantity, 1)
	order := FoodOrder{
		Confirmation:      newConfirmation(),
		Restaurant:        r.Name,
		Items:             []OrderItem{{Name: item.Name, Quantity: qty, Price: item.Price}},
		Total:             item.Price * float64(qty),
		DeliveryAddress:   a.Param(ParamAddress, ""),
		EstimatedDelivery: s.now().Add(deliveryWindow).UTC(),
	}
	text := fmt.Sprintf("Your order of %d x %s from %s is confirmed (total $%.2f). Confirmation: %s.",
		qty, item.Name, r.Name, order.Total, order.Confirmation)
	return s.confirm(a.Domain, order.Confirmation, text, order)
}

func (s *Service) bookTicket(_ context.Context, a Action, _ string) (*Reply, error) {
	event := a.Param(ParamEvent, "")
	if event == "" {
		return nil, nil
	}
	qty := intParam(a, ParamQuantity, 1)
	b := TicketBooking{
		Confirmation: newConfirmation(),
		Event:        event,
		Venue:        a.Param(ParamVenue, ""),
		Date:         a.Param(ParamDate, ""),
		Time:         a.Param(ParamTime, ""),
		Quantity:     qty,
		Total:        ticketPrices[a.Domain] * float64(qty),
	}
	text := fmt.Sprintf("Booked %d ticket(s) for %s%s. Confirmation: %s.",
		qty, event, when(b.Date, b.Time), b.Confirmation)
	return s.confirm(a.Domain, b.Confirmation, text, b)
}

func (s *Service) listBookings(_ context.Context, _ Action, _ string) (*Reply, error) {
	orders, err := s.store.ListOrders(recentBookings, 0)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list := BookingList{Orders: make([]OrderSummary, 0, len(orders))}
	for _, o := range orders {
		list.Orders = append(list.Orders, OrderSummary{
			Confirmation: o.Confirmation,
			Domain:       Domain(o.Domain),
			Summary:      o.Summary,
			CreatedAt:    o.CreatedAt,
		})
	}
	text := "You don't have any bookings yet."
	if n := len(list.Orders); n > 0 {
		text = fmt.Sprintf("Here are your %d most recent bookings.", n)
	}
	return &Reply{DisplayText: text, Payload: list}, nil
}

func (s *Service) showMenu(_ context.Context, a Action, _ string) (*Reply, error) {
	r, ok := s.catalog.Restaurant(a.Param(ParamRestaurant, ""))
	if !ok {
		return nil, nil
	}
	menu := Menu{Restaurant: r.Name, Items: append([]MenuItem(nil), r.Items...)}
	return &Reply{
		DisplayText: fmt.Sprintf("Here is the menu for %s.", r.Name),
		Payload:     menu,
	}, nil
}

func (s *Service) reserveTable(_ context.Context, a Action, _ string) (*Reply, error) {
	name := a.Param(ParamRestaurant, "")
	if name == "" {
		return nil, nil
	}
	if r, ok := s.catalog.Restaurant(name); ok {
		name = r.Name
	}
	res := TableReservation{
		Confirmation: newConfirmation(),
		Restaurant:   name,
		Date:         a.Param(ParamDate, ""),
		Time:         a.Param(ParamTime, ""),
		PartySize:    intParam(a, ParamPartySize, 2),
	}
	text := fmt.Sprintf("Reserved a table for %d at %s%s. Confirmation: %s.",
		res.PartySize, res.Restaurant, when(res.Date, res.Time), res.Confirmation)
	return s.confirm(a.Domain, res.Confirmation, text, res)
}

func (s *Service) bookHotel(_ context.Context, a Action, _ string) (*Reply, error) {
	loc := a.Param(ParamLocation, a.Param(ParamDestination, ""))
	if loc == "" {
		return nil, nil
	}
	b := HotelBooking{
		Confirmation: newConfirmation(),
		Location:     loc,
		CheckIn:      a.Param(ParamCheckIn, a.Param(ParamDate, "")),
		CheckOut:     a.Param(ParamCheckOut, ""),
		Guests:       intParam(a, ParamGuests, 1),
	}
	text := fmt.Sprintf("Booked a hotel in %s for %d guest(s). Confirmation: %s.", loc, b.Guests, b.Confirmation)
	return s.confirm(a.Domain, b.Confirmation, text, b)
}

func (s *Service) bookFlight(_ context.Context, a Action, _ string) (*Reply, error) {
	dest := a.Param(ParamDestination, "")
	if dest == "" {
		return nil, nil
	}
	b := FlightBooking{
		Confirmation: newConfirmation(),
		Origin:       a.Param(ParamOrigin, ""),
		Destination:  dest,
		Date:         a.Param(ParamDate, ""),
		Passengers:   intParam(a, ParamPassengers, 1),
	}
	route := "to " + dest
	if b.Origin != "" {
		route = "from " + b.Origin + " " + route
	}
	text := fmt.Sprintf("Booked a flight %s%s. Confirmation: %s.", route, when(b.Date, ""), b.Confirmation)
	return s.confirm(a.Domain, b.Confirmation, text, b)
}

func (s *Service) bookRide(_ context.Context, a Action, _ string) (*Reply, error) {
	dest := a.Param(ParamDestination, "")
	if dest == "" {
		return nil, nil
	}
	b := RideBooking{
		Confirmation: newConfirmation(),
		Pickup:       a.Param(ParamPickup, ""),
		Destination:  dest,
		ETAMinutes:   7,
	}
	text := fmt.Sprintf("Your ride to %s is on its way, arriving in about %d minutes. Confirmation: %s.",
		dest, b.ETAMinutes, b.Confirmation)
	return s.confirm(a.Domain, b.Confirmation, text, b)
}

// confirm persists the order and builds the reply.
func (s *Service) confirm(d Domain, code, text string, p Payload) (*Reply, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", d, err)
	}
	err = s.store.SaveOrder(storage.Order{
		ID:           uuid.NewString(),
		Confirmation: code,
		Domain:       string(d),
		Summary:      text,
		PayloadJSON:  string(data),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("saving %s order: %w", d, err)
	}
	return &Reply{DisplayText: text, Payload: p}, nil
}

func newConfirmation() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AURA-" + strings.ToUpper(id[:8])
}

func intParam(a Action, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(a.Param(key, "")))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func when(date, tm string) string {
	switch {
	case date != "" && tm != "":
		return " on " + date + " at " + tm
	case date != "":
		return " on " + date
	case tm != "":
		return " at " + tm
	}
	return ""
}
