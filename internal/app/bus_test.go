package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBus_EmitOrder(t *testing.T) {
	b := NewBus(0)
	var got []string
	b.On("a", func(Message) { got = append(got, "first") }).
		On("a", func(Message) { got = append(got, "second") }).
		On("b", func(Message) { got = append(got, "other") })

	b.Emit("a", nil)

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("handlers ran as %v, want [first second]", got)
	}
}

func TestBus_NestedEmitRunsImmediately(t *testing.T) {
	b := NewBus(0)
	var got []string
	b.On("outer", func(Message) {
		got = append(got, "outer:start")
		b.Emit("inner", nil)
		got = append(got, "outer:end")
	})
	b.On("inner", func(Message) { got = append(got, "inner") })

	b.Emit("outer", nil)

	want := []string{"outer:start", "inner", "outer:end"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBus_PayloadDelivered(t *testing.T) {
	b := NewBus(0)
	var got Message
	b.On(EventCmdReady, func(m Message) { got = m })

	b.Emit(EventCmdReady, "1 1")

	if got.Event != EventCmdReady || got.Payload != "1 1" {
		t.Errorf("got %+v", got)
	}
}

func TestBus_RunDispatchesPosted(t *testing.T) {
	b := NewBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan any, 2)
	b.On(EventSerialData, func(m Message) { seen <- m.Payload })

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	go b.Post(EventSerialData, "one")

	select {
	case p := <-seen:
		if p != "one" {
			t.Errorf("payload = %v, want one", p)
		}
	case <-time.After(time.Second):
		t.Fatal("posted message not dispatched")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if b.Post(EventSerialData, "late") {
		t.Error("Post() after Run returned should report false")
	}
}

func TestBus_FailStopsDispatch(t *testing.T) {
	b := NewBus(4)
	boom := errors.New("boom")
	var after bool
	b.On(EventWriteError, func(Message) { b.Fail(boom) })
	b.On(EventWriteError, func(Message) { after = true })
	b.On(EventCmdRemoved, func(Message) { after = true })

	b.Post(EventWriteError, nil)
	b.Post(EventCmdRemoved, nil)

	err := b.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want boom", err)
	}
	if after {
		t.Error("handler ran after Fail")
	}
	if !errors.Is(b.Err(), boom) {
		t.Errorf("Err() = %v, want boom", b.Err())
	}

	b.Fail(errors.New("second"))
	if !errors.Is(b.Err(), boom) {
		t.Error("second Fail replaced the first error")
	}
}

func TestBus_RunAfterFailReturnsImmediately(t *testing.T) {
	b := NewBus(0)
	boom := errors.New("boom")
	b.Fail(boom)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run() = %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
