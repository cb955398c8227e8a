package notify

import "testing"

func TestHubDeliversToEverySubscription(t *testing.T) {
	t.Parallel()

	hub := NewHub()

	first, unsubFirst := hub.Subscribe(1)
	second, unsubSecond := hub.Subscribe(1)
	defer unsubFirst()
	defer unsubSecond()

	hub.Push(1, "hello")

	for _, ch := range []<-chan string{first, second} {
		select {
		case payload := <-ch:
			if payload != "hello" {
				t.Fatalf("expected payload hello, got %q", payload)
			}
		default:
			t.Fatalf("expected payload delivered to every subscription")
		}
	}
}

func TestHubScopesDeliveryToUser(t *testing.T) {
	t.Parallel()

	hub := NewHub()

	mine, unsubMine := hub.Subscribe(1)
	theirs, unsubTheirs := hub.Subscribe(2)
	defer unsubMine()
	defer unsubTheirs()

	hub.Push(2, "secret")

	select {
	case payload := <-mine:
		t.Fatalf("payload leaked across users: %q", payload)
	default:
	}

	select {
	case <-theirs:
	default:
		t.Fatalf("expected delivery to the addressed user")
	}
}

func TestHubDropsWhenSubscriberLagsBehind(t *testing.T) {
	t.Parallel()

	hub := NewHub()

	ch, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Push(1, "burst")
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected overflow dropped at %d buffered payloads, got %d", subscriberBuffer, len(ch))
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub()

	ch, unsubscribe := hub.Subscribe(1)
	unsubscribe()

	hub.Push(1, "late")

	select {
	case payload := <-ch:
		t.Fatalf("expected no delivery after unsubscribe, got %q", payload)
	default:
	}
}
