package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"labjack"
)

//session горутины одного подключения: периодическая телеметрия
//и блокирующее чтение airlock.
type session struct {
	driver *labjack.Driver
	id     labjack.Identity
	pub    *publisher
	log    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startSession(parent context.Context, driver *labjack.Driver, id labjack.Identity,
	pub *publisher, cfg labjack.Config, log *slog.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		driver: driver,
		id:     id,
		pub:    pub,
		log:    log.With("identity", int(id)),
		cancel: cancel,
	}

	if err := driver.OpenPortA(id.Port(labjack.PortA)); nil != err {
		s.log.Error("open port A", "error", err)
	}
	pub.publish("status", true, statusMessage{State: "attached", Identity: int(id), At: time.Now()})

	s.wg.Add(2)
	go s.telemetry(ctx, time.Duration(cfg.MQTT.PublishIntervalMs)*time.Millisecond)
	go s.airlock(ctx, time.Duration(cfg.Ports.TimeUnitMs)*time.Millisecond)
	return s
}

//stop дожидается горутин и выключает выход порта A, пока устройство ещё может быть на месте.
func (s *session) stop() {
	s.cancel()
	s.wg.Wait()
	if err := s.driver.ClosePortA(s.id.Port(labjack.PortA)); nil != err {
		s.log.Debug("close port A", "error", err)
	}
	s.pub.publish("status", true, statusMessage{State: "detached", Identity: int(s.id), At: time.Now()})
}

func gone(err error) bool {
	return errors.Is(err, labjack.ErrDeviceRemoved) ||
		errors.Is(err, labjack.ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

func (s *session) telemetry(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		msg := telemetryMessage{Identity: int(s.id), At: time.Now()}

		celsius, err := s.driver.ReadTemperature(ctx, s.id.Port(labjack.PortB))
		switch {
		case nil == err:
			msg.Celsius = &celsius
		case gone(err):
			return
		default:
			s.log.Warn("temperature read", "error", err)
		}

		if msg.ToggleRemaining, err = s.driver.ReadPortA(s.id.Port(labjack.PortA)); nil != err && gone(err) {
			return
		}

		state, err := s.driver.AirlockState(s.id.Port(labjack.PortC))
		if nil != err && gone(err) {
			return
		}
		msg.Airlock = state.String()

		s.pub.publish("telemetry", false, msg)
	}
}

func (s *session) airlock(ctx context.Context, unit time.Duration) {
	defer s.wg.Done()

	buf := make([]byte, len(labjack.AirlockMessage))
	for {
		n, err := s.driver.ReadPortC(ctx, s.id.Port(labjack.PortC), buf)
		if nil != err {
			if !gone(err) {
				s.log.Warn("airlock read", "error", err)
			}
			return
		}
		s.pub.publish("airlock", true, airlockMessage{
			Identity: int(s.id), State: labjack.AirlockOpen.String(), Message: string(buf[:n]), At: time.Now(),
		})

		// чтение срабатывает по уровню: ждём закрытия, прежде чем читать снова
		if !s.waitClosed(ctx, unit) {
			return
		}
		s.pub.publish("airlock", true, airlockMessage{
			Identity: int(s.id), State: labjack.AirlockClosed.String(), At: time.Now(),
		})
	}
}

func (s *session) waitClosed(ctx context.Context, unit time.Duration) bool {
	ticker := time.NewTicker(unit)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		state, err := s.driver.AirlockState(s.id.Port(labjack.PortC))
		if nil != err {
			return false
		}
		switch state {
		case labjack.AirlockClosed:
			return true
		case labjack.AirlockError:
			return false
		}
	}
}
