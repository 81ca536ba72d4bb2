package labjack

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"
)

type heldRead struct {
	buf  []byte
	cmd  []byte
	done Completion
}

// fakeTransport отвечает на команды как U3. Пока hold, ответы копятся и
// отдаются по release; unplug завершает всё с TransferNoDevice.
type fakeTransport struct {
	mu sync.Mutex

	analog func(channel byte) uint16 // показание АЦП по каналу
	reply  func(cmd []byte) []byte   // если задан, заменяет обычный ответ

	goneAfter int // если > 0, устройство пропадает после стольких команд

	writes  [][]byte
	held    []heldRead
	hold    bool
	gone    bool
	closed  bool
	busy    bool // команда отправлена, ответ ещё не прочитан
	overlap bool // вторая команда пришла до ответа на первую
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{analog: func(byte) uint16 { return 0 }}
}

func (f *fakeTransport) SubmitWrite(endpoint uint8, buf []byte, done Completion) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		done(TransferCancelled, 0)
		return
	}
	if f.goneAfter > 0 && len(f.writes) >= f.goneAfter {
		f.gone = true
	}
	if f.gone {
		f.mu.Unlock()
		go done(TransferNoDevice, 0)
		return
	}
	if f.busy {
		f.overlap = true
	}
	f.busy = true
	f.writes = append(f.writes, append([]byte(nil), buf...))
	f.mu.Unlock()

	go done(TransferOK, len(buf))
}

func (f *fakeTransport) SubmitRead(endpoint uint8, buf []byte, done Completion) {
	f.mu.Lock()
	if f.closed {
		f.busy = false
		f.mu.Unlock()
		done(TransferCancelled, 0)
		return
	}
	if f.gone {
		f.busy = false
		f.mu.Unlock()
		go done(TransferNoDevice, 0)
		return
	}
	cmd := f.writes[len(f.writes)-1]
	if f.hold {
		f.held = append(f.held, heldRead{buf: buf, cmd: cmd, done: done})
		f.mu.Unlock()
		return
	}
	resp := f.response(cmd)
	f.busy = false
	f.mu.Unlock()

	go func() {
		done(TransferOK, copy(buf, resp))
	}()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.busy = false
	held := f.held
	f.held = nil
	f.mu.Unlock()

	for _, h := range held {
		h.done(TransferCancelled, 0)
	}
	return nil
}

// response под f.mu.
func (f *fakeTransport) response(cmd []byte) []byte {
	if nil != f.reply {
		return f.reply(cmd)
	}
	var ain uint16
	if cmd[offExtCommand] == extFeedback && cmd[offCmdData] == ioAIN {
		ain = f.analog(cmd[offCmdData+1])
	}
	return deviceResponse(cmd, 0, ain)
}

// deviceResponse ответ U3 на cmd с кодом ошибки status и показанием ain.
func deviceResponse(cmd []byte, status byte, ain uint16) []byte {
	resp := make([]byte, responsePacketSize)
	resp[offCommand] = cmdExtended
	resp[offWordCount] = byte((responsePacketSize - headerSize) / 2)
	resp[offExtCommand] = cmd[offExtCommand]
	resp[offStatus] = status
	if cmd[offExtCommand] == extFeedback {
		resp[offRespEcho] = cmd[offCmdEcho]
		binary.LittleEndian.PutUint16(resp[offRespAIN:], ain)
	}
	FixChecksum16(resp)
	return resp
}

func (f *fakeTransport) setHold(hold bool) {
	f.mu.Lock()
	f.hold = hold
	f.mu.Unlock()
}

// release отдаёт накопленные ответы и выключает hold.
func (f *fakeTransport) release() {
	f.mu.Lock()
	f.hold = false
	held := f.held
	f.held = nil
	resps := make([][]byte, len(held))
	for i, h := range held {
		resps[i] = f.response(h.cmd)
	}
	f.busy = false
	f.mu.Unlock()

	for i, h := range held {
		h.done(TransferOK, copy(h.buf, resps[i]))
	}
}

// unplug - устройство выдернули из шины.
func (f *fakeTransport) unplug() {
	f.mu.Lock()
	f.gone = true
	f.busy = false
	held := f.held
	f.held = nil
	f.mu.Unlock()

	for _, h := range held {
		h.done(TransferNoDevice, 0)
	}
}

func (f *fakeTransport) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

func (f *fakeTransport) commands() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// levels уровни из команд BitStateWrite в порядке отправки.
func (f *fakeTransport) levels() (levels []bool) {
	for _, cmd := range f.commands() {
		if cmd[offExtCommand] == extFeedback && cmd[offCmdData] == ioBitStateWrite {
			levels = append(levels, cmd[offCmdData+1]&0x80 != 0)
		}
	}
	return
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
