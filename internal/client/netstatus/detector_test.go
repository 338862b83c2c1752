package netstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartsOnline(t *testing.T) {
	assert.True(t, New().IsOnline())
}

func TestSetNotifiesOnChangeOnly(t *testing.T) {
	d := New()
	ch, unsubscribe := d.Subscribe()
	defer unsubscribe()

	d.Set(true)
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v", v)
	default:
	}

	d.Set(false)
	assert.False(t, d.IsOnline())
	assert.False(t, <-ch)

	d.Set(true)
	assert.True(t, <-ch)
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	d := New()
	ch, unsubscribe := d.Subscribe()
	defer unsubscribe()

	d.Set(false)
	d.Set(true)
	d.Set(false)

	assert.False(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("expected a single coalesced value, got extra %v", v)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	d := New()
	ch, unsubscribe := d.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel is closed")

	d.Set(false)
}
