package labjack

import (
	"fmt"
	"sync"
)

//Device состояние одного подключённого U3.
//
//Блокировки: аппаратная (в pipeline) и блокировка порта A независимы и
//никогда не берутся одна под другой. Порты B и C не держат своих блокировок
//во время обмена с устройством.
type Device struct {
	pipe *pipeline
	opts Options

	a *portA
	b *portB
	c *portC

	removed  chan struct{} // закрывается при отключении
	shutOnce sync.Once
	shutErr  error
}

func newDevice(t Transport, opts Options) *Device {
	pipe := newPipeline(t)
	removed := make(chan struct{})
	return &Device{
		pipe:    pipe,
		opts:    opts,
		a:       &portA{pipe: pipe, opts: opts},
		b:       &portB{pipe: pipe, opts: opts, removed: removed},
		c:       newPortC(pipe, opts),
		removed: removed,
	}
}

//handshake настраивает линии U3: вход airlock аналоговый, линия порта A - выход.
//Любая ошибка прерывает подключение.
func (d *Device) handshake() (err error) {
	_, err = d.pipe.exchange("configIO", newConfigIOPacket(d.opts.AirlockChannel), configPacketSize)
	if nil != err {
		err = fmt.Errorf("handshake: configIO: %w", err)
		return
	}
	logDebug(componentDriver, "inputs configured", "airlock_channel", d.opts.AirlockChannel)

	out := newBitDirWritePacket(d.pipe.echo(), d.opts.ToggleLine, true)
	_, err = d.pipe.exchange("bitDir", out, responsePacketSize)
	if nil != err {
		err = fmt.Errorf("handshake: set line %d output: %w", d.opts.ToggleLine, err)
	}
	return
}

//Removed закрывается, когда устройство отключено.
func (d *Device) Removed() <-chan struct{} {
	return d.removed
}

//shutdown отключает устройство. Порядок важен:
//порты помечаются ошибкой, ждущие просыпаются, транспорт отменяет
//незавершённые передачи (чтобы таймеры не висели на аппаратной блокировке),
//таймеры останавливаются синхронно, и только потом ждём последние продолжения.
//После возврата ни один обработчик завершения уже не обращается к устройству.
func (d *Device) shutdown() error {
	d.shutOnce.Do(func() {
		timerA := d.a.fail()
		d.c.fail()

		close(d.removed)

		d.shutErr = d.pipe.close()

		timerA.Stop()
		d.c.stop()

		d.pipe.drain()
	})
	return d.shutErr
}
