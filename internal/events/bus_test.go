package events

import (
	"testing"
	"time"
)

func TestPublishReachesTypedSubscriber(t *testing.T) {
	bus := New()
	got := make(chan CameraSwitchedEvent, 1)
	unsub := bus.Subscribe(func(e CameraSwitchedEvent) {
		select {
		case got <- e:
		default:
		}
	})
	defer unsub()

	bus.Publish(CameraSwitchedEvent{ActiveIndex: 2, SourcePath: "/dev/video2", Open: true})

	select {
	case e := <-got:
		if e.ActiveIndex != 2 || e.SourcePath != "/dev/video2" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received event")
	}
}

func TestSubscriberOnlySeesItsType(t *testing.T) {
	bus := New()
	got := make(chan RecordingStartedEvent, 4)
	unsub := bus.Subscribe(func(e RecordingStartedEvent) { got <- e })
	defer unsub()

	bus.Publish(StreamFallbackEvent{UsingFallback: true})
	bus.Publish(DeviceDiscoveryEvent{VideoCount: 1})

	select {
	case e := <-got:
		t.Errorf("received event of wrong type: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	got := make(chan StreamFallbackEvent, 4)
	unsub := bus.Subscribe(func(e StreamFallbackEvent) { got <- e })
	unsub()

	bus.Publish(StreamFallbackEvent{UsingFallback: true})

	select {
	case <-got:
		t.Error("unsubscribed handler still receiving")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 2)
	unsub := SubscribeToChannel[DeviceDiscoveryEvent](bus, ch)
	defer unsub()

	bus.Publish(DeviceDiscoveryEvent{VideoCount: 3, AudioCount: 1})

	select {
	case raw := <-ch:
		e, ok := raw.(DeviceDiscoveryEvent)
		if !ok {
			t.Fatalf("channel received %T", raw)
		}
		if e.VideoCount != 3 {
			t.Errorf("VideoCount = %d", e.VideoCount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel never received event")
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any) // unbuffered and never read
	unsub := SubscribeToChannel[LogEntryEvent](bus, ch)
	defer unsub()

	// Must not block the dispatcher.
	for i := 0; i < 10; i++ {
		bus.Publish(LogEntryEvent{Message: "x"})
	}
	time.Sleep(50 * time.Millisecond)
}

func TestEventTypeIdentifiers(t *testing.T) {
	events := []Event{
		DeviceDiscoveryEvent{},
		CameraSwitchedEvent{},
		SettingChangedEvent{},
		StreamFallbackEvent{},
		RecordingStartedEvent{},
		RecordingStoppedEvent{},
		AudioRelayStartedEvent{},
		LogEntryEvent{},
	}
	seen := make(map[uint32]bool)
	for _, e := range events {
		id := e.Type()
		if id == 0 {
			t.Errorf("%T has zero type id", e)
		}
		if seen[id] {
			t.Errorf("%T reuses type id %d", e, id)
		}
		seen[id] = true
	}
}
