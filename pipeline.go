package labjack

import (
	"sync"
	"sync/atomic"
)

//pipeline обмен командами с одним U3: запись команды в EP1, затем чтение ответа из EP2.
//
//Аппаратная блокировка hw захватывается до отправки команды и отпускается
//в обработчике завершения, поэтому на шине всегда не больше одной команды
//и ответы приходят в порядке отправки. hw никогда не берётся под блокировкой
//порта, а блокировка порта никогда не берётся под hw.
type pipeline struct {
	transport Transport
	hw        sync.Mutex

	mu        sync.Mutex // closed, onRemoved
	closed    bool
	onRemoved func()
	removed   sync.Once
	inflight  sync.WaitGroup

	seq atomic.Uint32
}

func newPipeline(t Transport) *pipeline {
	return &pipeline{transport: t}
}

// Continuation получает проверенный ответ или ошибку одного из видов:
// *TransportError, ErrChecksum, *DeviceError, ErrDeviceRemoved.
type continuation func(resp []byte, err error)

func (p *pipeline) echo() byte {
	return byte(p.seq.Add(1))
}

//run отправляет out и читает ответ до inSize байт. Возвращается сразу после
//отправки команды; done вызывается ровно один раз, уже без аппаратной блокировки.
func (p *pipeline) run(op string, out []byte, inSize int, done continuation) {
	p.hw.Lock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.hw.Unlock()
		done(nil, ErrDeviceRemoved)
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	logDebug(componentPipeline, "command", "op", op, "size", len(out))

	p.transport.SubmitWrite(EndpointOut, out, func(status TransferStatus, n int) {
		if status == TransferOK && n != len(out) {
			status = TransferError
		}
		if status != TransferOK {
			p.finish(op+" write", status, nil, done)
			return
		}

		in := make([]byte, inSize)
		p.transport.SubmitRead(EndpointIn, in, func(status TransferStatus, n int) {
			if status != TransferOK {
				p.finish(op+" read", status, nil, done)
				return
			}
			p.finish(op, TransferOK, in[:n], done)
		})
	})
}

// finish - единственный выход из цепочки run: отпускает hw, проверяет ответ
// и вызывает продолжение.
func (p *pipeline) finish(op string, status TransferStatus, resp []byte, done continuation) {
	p.hw.Unlock()
	defer p.inflight.Done()

	if status != TransferOK {
		err := &TransportError{Op: op, Status: status}
		if status == TransferNoDevice {
			p.promoteRemoval()
		}
		if status != TransferCancelled {
			logWarn(componentPipeline, "transfer failed", "op", op, "status", status.String())
		}
		done(nil, err)
		return
	}

	if err := ValidateResponse(resp); nil != err {
		logWarn(componentPipeline, "bad response", "op", op, "error", err)
		done(nil, err)
		return
	}
	done(resp, nil)
}

//exchange блокирующий вариант run.
func (p *pipeline) exchange(op string, out []byte, inSize int) (resp []byte, err error) {
	type result struct {
		resp []byte
		err  error
	}
	ch := make(chan result, 1)
	p.run(op, out, inSize, func(resp []byte, err error) {
		ch <- result{resp, err}
	})
	r := <-ch
	return r.resp, r.err
}

func (p *pipeline) setOnRemoved(fn func()) {
	p.mu.Lock()
	p.onRemoved = fn
	p.mu.Unlock()
}

// Отключение устройства, замеченное на шине, превращается в отключение
// всего устройства. Вызывается из обработчика завершения, поэтому
// само отключение идёт в отдельной горутине: оно ждёт завершения всех команд.
func (p *pipeline) promoteRemoval() {
	p.mu.Lock()
	fn := p.onRemoved
	p.mu.Unlock()
	if nil == fn {
		return
	}
	p.removed.Do(func() {
		logInfo(componentPipeline, "device removal detected on the bus")
		go fn()
	})
}

//close запрещает новые команды и закрывает транспорт; незавершённые передачи отменяются.
func (p *pipeline) close() (err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	return p.transport.Close()
}

//drain ждёт, пока отработают все продолжения уже отправленных команд.
func (p *pipeline) drain() {
	p.inflight.Wait()
}
