package labjack

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// slowOptions: порт C почти не опрашивает устройство.
func slowOptions() Options {
	opts := DefaultOptions()
	opts.TimeUnit = time.Hour
	return opts
}

func attachFake(t *testing.T, opts Options, analog func(channel byte) uint16) (*Driver, *fakeTransport, Identity) {
	t.Helper()
	f := newFakeTransport()
	if nil != analog {
		f.analog = analog
	}
	drv := NewDriver(opts)
	id, err := drv.Attach(f)
	if err != nil {
		t.Fatalf("Attach err=%v", err)
	}
	t.Cleanup(func() { drv.Close() })
	return drv, f, id
}

func TestPortB_SerializedReads(t *testing.T) {
	var n atomic.Int32
	values := []uint16{23000, 25000}
	drv, _, id := attachFake(t, slowOptions(), func(ch byte) uint16 {
		if ch != ChannelTemperature {
			return 0
		}
		return values[(n.Add(1)-1)%2]
	})

	ctx := context.Background()
	for i, want := range []int32{26, 52} {
		got, err := drv.ReadTemperature(ctx, id.Port(PortB))
		if err != nil {
			t.Fatalf("read #%d err=%v", i, err)
		}
		if got != want {
			t.Fatalf("read #%d = %d, want %d", i, got, want)
		}
	}
}

func TestPortB_ReadIntoBuffer(t *testing.T) {
	drv, _, id := attachFake(t, slowOptions(), func(byte) uint16 { return 23000 })
	ctx := context.Background()

	if _, err := drv.ReadPortB(ctx, id.Port(PortB), make([]byte, 3)); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("3-byte buffer err=%v", err)
	}

	buf := make([]byte, 8)
	n, err := drv.ReadPortB(ctx, id.Port(PortB), buf)
	if err != nil {
		t.Fatalf("ReadPortB err=%v", err)
	}
	if n != 4 {
		t.Fatalf("n=%d, want 4", n)
	}
	if got := int32(binary.LittleEndian.Uint32(buf)); got != 26 {
		t.Fatalf("value=%d, want 26", got)
	}
}

func TestPortB_RemovedWhileBlocked(t *testing.T) {
	drv, f, id := attachFake(t, slowOptions(), nil)
	f.setHold(true)

	errc := make(chan error, 1)
	go func() {
		_, err := drv.ReadTemperature(context.Background(), id.Port(PortB))
		errc <- err
	}()
	eventually(t, time.Second, func() bool { return f.heldCount() == 1 }, "read in flight")

	if err := drv.Detach(id); err != nil {
		t.Fatalf("Detach err=%v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrDeviceRemoved) {
			t.Fatalf("blocked read err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked read was not woken by removal")
	}

	if _, err := drv.ReadTemperature(context.Background(), id.Port(PortB)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read after detach err=%v", err)
	}
}

func TestPortB_ContextCancel(t *testing.T) {
	drv, f, id := attachFake(t, slowOptions(), nil)
	f.setHold(true)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := drv.ReadTemperature(ctx, id.Port(PortB))
		errc <- err
	}()
	eventually(t, time.Second, func() bool { return f.heldCount() == 1 }, "read in flight")
	cancel()

	err := <-errc
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled read err=%v", err)
	}

	// брошенный ответ не достаётся следующему читателю
	f.release()
	got, err := drv.ReadTemperature(context.Background(), id.Port(PortB))
	if err != nil || got != -273 {
		t.Fatalf("next read = %d err=%v", got, err)
	}
}
