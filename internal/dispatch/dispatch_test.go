package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/aura/internal/booking"
)

func replyWith(r *booking.Reply, err error) booking.Handler {
	return booking.HandlerFunc(func(context.Context, booking.Action, string) (*booking.Reply, error) {
		return r, err
	})
}

func TestDispatch_Success(t *testing.T) {
	var gotUtterance string
	d := New(map[booking.Domain]booking.Handler{
		booking.DomainRide: booking.HandlerFunc(func(_ context.Context, a booking.Action, u string) (*booking.Reply, error) {
			gotUtterance = u
			return &booking.Reply{
				DisplayText: "Ride booked",
				Payload:     booking.RideBooking{Destination: a.Param("destination", "")},
			}, nil
		}),
	})

	res, ok, err := d.Dispatch(context.Background(),
		booking.Action{Domain: booking.DomainRide, Params: map[string]string{"destination": "airport"}},
		"get me a ride to the airport")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ride booked", res.DisplayText)
	assert.Equal(t, booking.DomainRide, res.Domain)
	assert.Equal(t, booking.RideBooking{Destination: "airport"}, res.Payload)
	assert.Equal(t, "get me a ride to the airport", gotUtterance)
}

func TestDispatch_UnknownDomainIsNoResult(t *testing.T) {
	d := New(nil)
	_, ok, err := d.Dispatch(context.Background(), booking.Action{Domain: "spa"}, "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatch_NilReplyIsNoResult(t *testing.T) {
	d := New(map[booking.Domain]booking.Handler{booking.DomainHotel: replyWith(nil, nil)})
	_, ok, err := d.Dispatch(context.Background(), booking.Action{Domain: booking.DomainHotel}, "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatch_HandlerError(t *testing.T) {
	boom := errors.New("booking backend down")
	d := New(map[booking.Domain]booking.Handler{booking.DomainFlight: replyWith(nil, boom)})
	_, ok, err := d.Dispatch(context.Background(), booking.Action{Domain: booking.DomainFlight}, "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestDispatch_MismatchedPayloadIsNoResult(t *testing.T) {
	d := New(map[booking.Domain]booking.Handler{
		booking.DomainHotel: replyWith(&booking.Reply{DisplayText: "x", Payload: booking.RideBooking{}}, nil),
	})
	_, ok, err := d.Dispatch(context.Background(), booking.Action{Domain: booking.DomainHotel}, "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatch_TextOnlyReply(t *testing.T) {
	d := New(map[booking.Domain]booking.Handler{
		booking.DomainTicket: replyWith(&booking.Reply{DisplayText: "Sold out"}, nil),
	})
	res, ok, err := d.Dispatch(context.Background(), booking.Action{Domain: booking.DomainTicket}, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, res.Payload)
}
