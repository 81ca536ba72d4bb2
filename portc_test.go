package labjack

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPortC_Transitions(t *testing.T) {
	dev := newTestDevice(t, newFakeTransport(), slowOptions())
	c := dev.c

	tests := []struct {
		raw  uint16
		want AirlockState
	}{
		{20000, AirlockClosed},
		{26860, AirlockClosed},
		{26861, AirlockOpen},
		{27000, AirlockOpen},
		{20000, AirlockClosed},
	}
	for i, tt := range tests {
		c.observe(tt.raw)
		if got := c.current(); got != tt.want {
			t.Fatalf("step %d raw=%d: state %v, want %v", i, tt.raw, got, tt.want)
		}
	}
}

func TestPortC_ReadWhileOpen(t *testing.T) {
	dev := newTestDevice(t, newFakeTransport(), slowOptions())
	dev.c.observe(27000)

	buf := make([]byte, 32)
	n, err := dev.c.read(context.Background(), buf)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	if got := string(buf[:n]); got != AirlockMessage {
		t.Fatalf("message %q", got)
	}

	// по уровню: повторное чтение в открытом состоянии тоже не ждёт
	small := make([]byte, 6)
	n, err = dev.c.read(context.Background(), small)
	if err != nil || string(small[:n]) != "Airloc" {
		t.Fatalf("truncated read %q err=%v", small[:n], err)
	}
}

func TestPortC_ReadBlocksUntilOpen(t *testing.T) {
	dev := newTestDevice(t, newFakeTransport(), slowOptions())

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := dev.c.read(context.Background(), make([]byte, 14))
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		t.Fatalf("read returned while closed: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	dev.c.observe(27000)
	select {
	case r := <-done:
		if r.err != nil || r.n != 14 {
			t.Fatalf("read n=%d err=%v", r.n, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("read was not woken when the airlock opened")
	}
}

func TestPortC_FailWakesReaders(t *testing.T) {
	dev := newTestDevice(t, newFakeTransport(), slowOptions())

	errc := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := dev.c.read(context.Background(), make([]byte, 14))
			errc <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)

	dev.shutdown()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errc:
			if !errors.Is(err, ErrInterrupted) || !errors.Is(err, ErrDeviceRemoved) {
				t.Fatalf("reader err=%v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("reader was not woken by shutdown")
		}
	}

	// после отключения показания ничего не меняют
	dev.c.observe(27000)
	if got := dev.c.current(); got != AirlockError {
		t.Fatalf("state after shutdown %v", got)
	}
}

func TestPortC_ContextDeadline(t *testing.T) {
	dev := newTestDevice(t, newFakeTransport(), slowOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := dev.c.read(ctx, make([]byte, 14))
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("read err=%v", err)
	}
}

func TestPortC_Polling(t *testing.T) {
	var airlock atomic.Uint32
	airlock.Store(20000)

	opts := DefaultOptions()
	opts.TimeUnit = 5 * time.Millisecond
	drv, _, id := attachFake(t, opts, func(ch byte) uint16 {
		if ch == opts.AirlockChannel {
			return uint16(airlock.Load())
		}
		return 0
	})
	portC := id.Port(PortC)

	airlock.Store(27000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf := make([]byte, 14)
	n, err := drv.ReadPortC(ctx, portC, buf)
	if err != nil || string(buf[:n]) != AirlockMessage {
		t.Fatalf("ReadPortC %q err=%v", buf[:n], err)
	}

	airlock.Store(20000)
	eventually(t, time.Second, func() bool {
		state, _ := drv.AirlockState(portC)
		return state == AirlockClosed
	}, "airlock closed")
}
