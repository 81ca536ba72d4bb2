package labjack

import (
	"sync"
	"time"
)

// Максимальное время одной bulk-передачи.
const maxDelayUSB = 500 * time.Millisecond

//bulkPipe синхронный доступ к bulk-каналам, своя реализация для каждой платформы.
type bulkPipe interface {
	bulkOut(buf []byte, timeout time.Duration) (int, error)
	bulkIn(buf []byte, timeout time.Duration) (int, error)
	classify(err error) TransferStatus
	close() error
}

//usbTransport делает из синхронного bulkPipe асинхронный Transport:
//каждая передача выполняется в своей горутине.
type usbTransport struct {
	pipe    bulkPipe
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func newUSBTransport(pipe bulkPipe, timeout time.Duration) *usbTransport {
	if timeout <= 0 {
		timeout = maxDelayUSB
	}
	return &usbTransport{pipe: pipe, timeout: timeout}
}

//SubmitWrite отправляет buf в канал endpoint.
func (t *usbTransport) SubmitWrite(endpoint uint8, buf []byte, done Completion) {
	t.submit(endpoint, buf, done)
}

//SubmitRead читает в buf из канала endpoint.
func (t *usbTransport) SubmitRead(endpoint uint8, buf []byte, done Completion) {
	t.submit(endpoint, buf, done)
}

func (t *usbTransport) submit(endpoint uint8, buf []byte, done Completion) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		done(TransferCancelled, 0)
		return
	}
	t.pending.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.pending.Done()

		var n int
		var err error
		if endpoint&0x80 != 0 {
			n, err = t.pipe.bulkIn(buf, t.timeout)
		} else {
			n, err = t.pipe.bulkOut(buf, t.timeout)
		}

		status := TransferOK
		if nil != err {
			status = t.pipe.classify(err)
			if t.isClosed() && status != TransferNoDevice {
				status = TransferCancelled
			}
			logDebug(componentTransport, "bulk transfer failed",
				"endpoint", endpoint, "status", status.String(), "error", err)
		}
		done(status, n)
	}()
}

func (t *usbTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

//Close запрещает новые передачи, дожидается незавершённых и закрывает устройство.
//Незавершённая передача заканчивается не позже таймаута.
func (t *usbTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.pending.Wait()
	return t.pipe.close()
}
