// Package sigil classifies raw language-service responses into plain text,
// image requests, or booking requests.
package sigil

import (
	"strings"

	"github.com/kalambet/aura/internal/booking"
)

// ImagePrefix marks an image request; the prompt follows the prefix.
const ImagePrefix = "IMAGE_GENERATION:"

// Kind is the handling path of a classified response.
type Kind int

const (
	Text Kind = iota
	Image
	Booking
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Booking:
		return "booking"
	}
	return "text"
}

var bookingSigils = map[string]booking.Domain{
	"FOOD_BOOKING_REQUEST":        booking.DomainFood,
	"TICKET_BOOKING_REQUEST":      booking.DomainTicket,
	"FASTERBOOK_FOOD_REQUEST":     booking.DomainFasterbookFood,
	"FASTERBOOK_MOVIE_REQUEST":    booking.DomainFasterbookMovie,
	"FASTERBOOK_BOOKINGS_REQUEST": booking.DomainFasterbookBookings,
	"FASTERBOOK_MENU_REQUEST":     booking.DomainFasterbookMenu,
	"RESTAURANT_ORDER_REQUEST":    booking.DomainRestaurant,
	"HOTEL_BOOKING_REQUEST":       booking.DomainHotel,
	"FLIGHT_BOOKING_REQUEST":      booking.DomainFlight,
	"RIDE_BOOKING_REQUEST":        booking.DomainRide,
}

// Classification is the result of Classify. Text is set for Text, Prompt for
// Image and Domain for Booking.
type Classification struct {
	Kind   Kind
	Text   string
	Prompt string
	Domain booking.Domain
}

// Classify maps a raw response to its handling path. It never fails: any
// response that is not a recognized sigil is plain text, returned verbatim.
func Classify(raw string) Classification {
	s := strings.TrimSpace(raw)
	if prompt, ok := strings.CutPrefix(s, ImagePrefix); ok {
		return Classification{Kind: Image, Prompt: strings.TrimSpace(prompt)}
	}
	if d, ok := bookingSigils[s]; ok {
		return Classification{Kind: Booking, Domain: d}
	}
	return Classification{Kind: Text, Text: raw}
}

// For returns the sigil that requests domain d.
func For(d booking.Domain) (string, bool) {
	for s, known := range bookingSigils {
		if known == d {
			return s, true
		}
	}
	return "", false
}
