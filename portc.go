package labjack

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

//AirlockState состояние порта C.
type AirlockState int

const (
	AirlockClosed AirlockState = iota // ниже порога
	AirlockOpen                       // выше порога
	AirlockError                      // устройство отключено
)

func (s AirlockState) String() string {
	switch s {
	case AirlockClosed:
		return "closed"
	case AirlockOpen:
		return "open"
	case AirlockError:
		return "error"
	default:
		return "unknown"
	}
}

//AirlockMessage то, что читает вызывающий из открытого порта C.
const AirlockMessage = "Airlock open!\n"

//portC опрашивает аналоговый вход каждую единицу времени и сравнивает с порогом.
//
//wake закрывается при выходе из closed (в open или error) и создаётся заново
//при возврате в closed. Чтение ждёт, пока состояние не станет отличным от closed;
//условие проверяется по уровню, поэтому чтение в открытом состоянии не ждёт.
type portC struct {
	pipe *pipeline
	opts Options

	mu    sync.Mutex
	state AirlockState
	wake  chan struct{}

	timer   *timerTask
	polling atomic.Bool // предыдущий опрос ещё не завершился
}

func newPortC(pipe *pipeline, opts Options) *portC {
	return &portC{
		pipe:  pipe,
		opts:  opts,
		state: AirlockClosed,
		wake:  make(chan struct{}),
	}
}

func (c *portC) start() {
	c.timer = startTimer(c.opts.TimeUnit, func() time.Duration {
		c.poll()
		return c.opts.TimeUnit
	})
}

func (c *portC) poll() {
	if !c.polling.CompareAndSwap(false, true) {
		return
	}
	out := newAnalogReadPacket(c.pipe.echo(), c.opts.AirlockChannel, ChannelGround)
	c.pipe.run("portC poll", out, responsePacketSize, func(resp []byte, err error) {
		defer c.polling.Store(false)
		if nil == err {
			var raw uint16
			if raw, err = analogValue(resp); nil == err {
				c.observe(raw)
				return
			}
		}
		logDebug(componentPortC, "poll failed", "error", err)
	})
}

//observe применяет одно показание датчика.
func (c *portC) observe(raw uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	open := raw > c.opts.AirlockThreshold
	switch {
	case c.state == AirlockError:
	case open && c.state == AirlockClosed:
		c.state = AirlockOpen
		close(c.wake)
		logInfo(componentPortC, "airlock opened", "raw", raw)
	case !open && c.state == AirlockOpen:
		c.state = AirlockClosed
		c.wake = make(chan struct{})
		logInfo(componentPortC, "airlock closed", "raw", raw)
	}
}

func (c *portC) current() AirlockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

//read ждёт открытия и копирует AirlockMessage в buf (обрезая по размеру buf).
func (c *portC) read(ctx context.Context, buf []byte) (n int, err error) {
	for {
		c.mu.Lock()
		state, wake := c.state, c.wake
		c.mu.Unlock()

		switch state {
		case AirlockOpen:
			n = copy(buf, AirlockMessage)
			return
		case AirlockError:
			err = fmt.Errorf("portC read: %w: %w", ErrInterrupted, ErrDeviceRemoved)
			return
		}

		select {
		case <-wake:
		case <-ctx.Done():
			err = fmt.Errorf("portC read: %w: %w", ErrInterrupted, ctx.Err())
			return
		}
	}
}

// fail переводит порт в error и будит всех ждущих, один раз.
func (c *portC) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case AirlockError:
		return
	case AirlockClosed:
		close(c.wake)
	}
	c.state = AirlockError
}

// stop останавливает опрос; после возврата poll больше не вызывается.
func (c *portC) stop() {
	c.timer.Stop()
}
