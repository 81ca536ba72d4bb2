package labjack

import (
	"sync"
	"time"
)

//portA периодически переключает цифровой выход.
//
//Состояния: остановлен и работает (running, таймер взведён).
//frequency задаёт период в единицах времени драйвера; 0 означает, что
//после ближайшего срабатывания таймер не будет взведён снова и порт
//остановится. write не перезапускает остановленный порт, это делает open.
//Все поля защищены mu. mu не держится во время обмена с устройством.
type portA struct {
	pipe *pipeline
	opts Options

	mu        sync.Mutex
	frequency uint8
	level     bool
	expires   time.Time
	timer     *timerTask
	running   bool   // таймер взведён; сбрасывается, когда таймер не взводится снова
	gen       uint64 // срабатывание с чужим поколением ничего не делает
	failed    bool
}

func (a *portA) period(freq uint8) time.Duration {
	return time.Duration(freq) * a.opts.TimeUnit
}

//open запускает переключение. Если порт уже работает, ничего не делает.
func (a *portA) open() error {
	a.mu.Lock()
	if a.failed {
		a.mu.Unlock()
		return ErrDeviceRemoved
	}
	if a.running && a.frequency > 0 {
		a.mu.Unlock()
		return nil
	}

	old := a.timer
	a.gen++
	gen := a.gen
	a.frequency = a.opts.DefaultFrequency
	a.level = true
	a.running = true
	d := a.period(a.frequency)
	a.expires = time.Now().Add(d)
	a.timer = startTimer(d, func() time.Duration { return a.tick(gen) })
	a.mu.Unlock()

	// старый таймер уже не нашего поколения, его срабатывание ничего не сделает
	old.Stop()

	logDebug(componentPortA, "opened", "frequency", a.opts.DefaultFrequency)
	a.setLevel(true)
	return nil
}

//write задаёт новый период. 0 не останавливает текущий цикл,
//а только запрещает взводить таймер после него.
func (a *portA) write(freq uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failed {
		return ErrDeviceRemoved
	}
	a.frequency = freq
	logDebug(componentPortA, "frequency set", "frequency", freq)
	return nil
}

//read сколько единиц времени осталось до следующего переключения,
//с округлением вверх: пока переключение ожидается, результат не меньше 1.
func (a *portA) read() (remaining uint32, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failed {
		err = ErrDeviceRemoved
		return
	}
	if !a.running {
		return
	}
	left := time.Until(a.expires)
	unit := a.opts.TimeUnit
	if left <= 0 || unit <= 0 {
		return
	}
	remaining = uint32((left + unit - 1) / unit)
	return
}

//close останавливает таймер и выключает выход. После возврата переключений больше не будет.
func (a *portA) close() error {
	a.mu.Lock()
	timer := a.timer
	a.timer = nil
	a.gen++
	a.frequency = 0
	a.level = false
	a.running = false
	a.expires = time.Time{}
	failed := a.failed
	a.mu.Unlock()

	timer.Stop()

	if failed {
		return ErrDeviceRemoved
	}
	logDebug(componentPortA, "closed")
	a.setLevel(false)
	return nil
}

// tick - срабатывание таймера.
func (a *portA) tick(gen uint64) time.Duration {
	a.mu.Lock()
	if gen != a.gen || a.failed {
		a.mu.Unlock()
		return 0
	}
	a.level = !a.level
	level := a.level
	var next time.Duration
	if a.frequency > 0 {
		next = a.period(a.frequency)
		a.expires = time.Now().Add(next)
	} else {
		// a.timer остаётся: close дождётся, пока эта команда уйдёт на шину
		a.running = false
		a.expires = time.Time{}
	}
	a.mu.Unlock()

	a.setLevel(level)
	return next
}

// fail - первый шаг отключения устройства. Возвращает таймер, который
// нужно остановить после отмены транспорта.
func (a *portA) fail() *timerTask {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = true
	a.running = false
	a.gen++
	a.frequency = 0
	timer := a.timer
	a.timer = nil
	return timer
}

func (a *portA) setLevel(high bool) {
	out := newBitStateWritePacket(a.pipe.echo(), a.opts.ToggleLine, high)
	a.pipe.run("portA level", out, responsePacketSize, func(resp []byte, err error) {
		if nil != err {
			logWarn(componentPortA, "set level failed", "high", high, "error", err)
		}
	})
}
