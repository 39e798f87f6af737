package notify

import (
	"sync"
	"testing"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus[string]()
	var received []string
	bus.Subscribe(func(value string) { received = append(received, "first:"+value) })
	bus.Subscribe(func(value string) { received = append(received, "second:"+value) })

	bus.Publish("expired")

	if len(received) != 2 || received[0] != "first:expired" || received[1] != "second:expired" {
		t.Fatalf("unexpected deliveries %v", received)
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus[int]()
	calls := 0
	unsubscribe := bus.Subscribe(func(int) { calls++ })
	if bus.Len() != 1 {
		t.Fatalf("expected one subscriber, got %d", bus.Len())
	}

	bus.Publish(1)
	unsubscribe()
	unsubscribe()
	bus.Publish(2)

	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}
	if bus.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Len())
	}
}

func TestBusHandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus[int]()
	calls := 0
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(int) {
		calls++
		unsubscribe()
	})

	bus.Publish(1)
	bus.Publish(2)

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestBusNilHandlerIsIgnored(t *testing.T) {
	var bus Bus[int]
	bus.Subscribe(nil)()
	if bus.Len() != 0 {
		t.Fatalf("nil handler must not register")
	}
	bus.Publish(1)
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus[int]()
	var mutex sync.Mutex
	total := 0
	bus.Subscribe(func(value int) {
		mutex.Lock()
		defer mutex.Unlock()
		total += value
	})

	var group sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			bus.Publish(1)
		}()
	}
	group.Wait()

	if total != 16 {
		t.Fatalf("expected 16 deliveries, got %d", total)
	}
}
