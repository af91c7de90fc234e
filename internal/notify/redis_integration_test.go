//go:build integration

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swasthya/internal/platform/logger"
	platformredis "swasthya/internal/platform/redis"
	"swasthya/pkg/testutil/containers"
)

func newRedisBuses(t *testing.T) (*RedisBus, *RedisBus) {
	t.Helper()
	rc := containers.Redis(t)
	client := &platformredis.Client{Client: rc.Client}

	log := logger.New()
	a := NewRedisBus(NewBus(), client, log)
	b := NewRedisBus(NewBus(), client, log)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func waitForNotification(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n := <-sub.C:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

// A publish on one instance reaches subscribers registered on another.
func TestRedisBus_CrossInstanceDelivery(t *testing.T) {
	busA, busB := newRedisBuses(t)

	sub := busB.Subscribe("patient@example.com")
	defer sub.Close()

	// The fan-in goroutine's PSUBSCRIBE races bus construction; give Redis a
	// moment to register it before publishing.
	time.Sleep(200 * time.Millisecond)

	busA.Publish("patient@example.com", Notification{
		PrescriptionID: "rx-1",
		AllPresent:     true,
		Message:        "All medicines available",
	})

	got := waitForNotification(t, sub)
	assert.Equal(t, "rx-1", got.PrescriptionID)
	assert.True(t, got.AllPresent)
	assert.Equal(t, "All medicines available", got.Message)
}

// The publishing instance's own subscribers hear the message through the same
// Redis round trip, exactly once.
func TestRedisBus_LocalSubscriberSingleDelivery(t *testing.T) {
	busA, _ := newRedisBuses(t)

	sub := busA.Subscribe("patient@example.com")
	defer sub.Close()
	time.Sleep(200 * time.Millisecond)

	busA.Publish("patient@example.com", Notification{PrescriptionID: "rx-2", Message: "Prescription rejected"})

	got := waitForNotification(t, sub)
	assert.Equal(t, "rx-2", got.PrescriptionID)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected duplicate delivery: %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRedisBus_IdentityIsolation(t *testing.T) {
	busA, busB := newRedisBuses(t)

	mine := busB.Subscribe("patient@example.com")
	defer mine.Close()
	other := busB.Subscribe("other@example.com")
	defer other.Close()
	time.Sleep(200 * time.Millisecond)

	busA.Publish("patient@example.com", Notification{PrescriptionID: "rx-3", Message: "Some medicines are unavailable"})

	got := waitForNotification(t, mine)
	require.Equal(t, "rx-3", got.PrescriptionID)

	select {
	case n := <-other.C:
		t.Fatalf("notification leaked to wrong identity: %+v", n)
	case <-time.After(300 * time.Millisecond):
	}
}
