package labjack

import (
	"context"
	"fmt"
)

// Размер результата порта B: int32, градусы Цельсия.
const temperatureSize = 4

type readingState int

const (
	readingPending readingState = iota
	readingReady
	readingFailed
)

//reading результат одного чтения порта B.
type reading struct {
	state   readingState
	celsius int32
	err     error
}

//portB читает температуру по запросу. У каждого чтения свой слот результата,
//поэтому ответ одной команды не может достаться другому читателю.
type portB struct {
	pipe    *pipeline
	opts    Options
	removed <-chan struct{}
}

//read отправляет команду AIN и ждёт её завершения, отключения устройства или отмены ctx.
func (b *portB) read(ctx context.Context) (celsius int32, err error) {
	select {
	case <-b.removed:
		err = ErrDeviceRemoved
		return
	default:
	}

	slot := make(chan reading, 1)
	out := newAnalogReadPacket(b.pipe.echo(), b.opts.TemperatureChannel, ChannelGround)
	b.pipe.run("portB read", out, responsePacketSize, func(resp []byte, err error) {
		r := reading{state: readingFailed, err: err}
		if nil == err {
			var raw uint16
			if raw, r.err = analogValue(resp); nil == r.err {
				r = reading{state: readingReady, celsius: CelsiusFromRaw(raw)}
			}
		}
		slot <- r
	})

	select {
	case r := <-slot:
		switch r.state {
		case readingReady:
			celsius = r.celsius
			logDebug(componentPortB, "temperature", "celsius", celsius)
		default:
			// команду отменило отключение устройства
			select {
			case <-b.removed:
				err = fmt.Errorf("portB read: %w", ErrDeviceRemoved)
			default:
				err = fmt.Errorf("portB read: %w", r.err)
			}
		}
	case <-b.removed:
		err = fmt.Errorf("portB read: %w", ErrDeviceRemoved)
	case <-ctx.Done():
		err = fmt.Errorf("portB read: %w: %w", ErrInterrupted, ctx.Err())
	}
	return
}
