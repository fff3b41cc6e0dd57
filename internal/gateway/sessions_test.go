package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/wizard"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(time.Minute)

	bw := wizard.NewBookingWizard(&fakeClinic{}, nil)
	id := store.PutBooking(bw)

	got, ok := store.Booking(id)
	require.True(t, ok)
	assert.Same(t, bw, got)

	// A booking session is not visible through the reschedule accessor.
	_, ok = store.Reschedule(id)
	assert.False(t, ok)

	store.Drop(id)
	_, ok = store.Booking(id)
	assert.False(t, ok)
}

func TestSessionStoreUnknownID(t *testing.T) {
	store := NewSessionStore(time.Minute)
	_, ok := store.Booking("missing")
	assert.False(t, ok)
}

func TestSessionStoreIdleExpiry(t *testing.T) {
	store := NewSessionStore(time.Minute)
	current := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)
	store.now = func() time.Time { return current }

	id := store.PutBooking(wizard.NewBookingWizard(&fakeClinic{}, nil))

	current = current.Add(30 * time.Second)
	_, ok := store.Booking(id)
	require.True(t, ok, "session inside TTL must survive")

	// Access reset the idle clock; expiry counts from last use.
	current = current.Add(61 * time.Second)
	_, ok = store.Booking(id)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreZeroTTLNeverExpires(t *testing.T) {
	store := NewSessionStore(0)
	current := time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)
	store.now = func() time.Time { return current }

	id := store.PutReschedule(wizard.NewRescheduleWizard(&fakeClinic{}, wizard.ModePickOne, nil))

	current = current.Add(24 * time.Hour)
	_, ok := store.Reschedule(id)
	assert.True(t, ok)
}
