package labjack

import (
	"sync"
	"time"
)

//timerTask горутина-таймер. fire возвращает интервал до следующего срабатывания,
//ноль или меньше - таймер больше не взводится.
//После возврата из Stop fire уже не выполняется и больше не будет вызван.
type timerTask struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startTimer(delay time.Duration, fire func() time.Duration) *timerTask {
	t := &timerTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.loop(delay, fire)
	return t
}

func (t *timerTask) loop(delay time.Duration, fire func() time.Duration) {
	defer close(t.done)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}

		// Stop мог прийти одновременно с таймером
		select {
		case <-t.stop:
			return
		default:
		}

		next := fire()
		if next <= 0 {
			return
		}
		timer.Reset(next)
	}
}

//Stop останавливает таймер и ждёт выхода из fire.
//Нельзя вызывать под блокировкой, которую берёт fire.
func (t *timerTask) Stop() {
	if nil == t {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}
