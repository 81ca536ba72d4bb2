package labjack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

//Options параметры портов, общие для всех подключённых устройств.
type Options struct {
	ToggleLine         uint8         // цифровая линия порта A (FIO0..)
	DefaultFrequency   uint8         // период порта A после open, в единицах TimeUnit
	TemperatureChannel uint8         // канал АЦП порта B
	AirlockChannel     uint8         // канал АЦП порта C, только EIO (AIN8..AIN15)
	AirlockThreshold   uint16        // показание выше порога - airlock открыт
	TimeUnit           time.Duration // единица времени портов A и C
}

//DefaultOptions исходная схема подключения.
func DefaultOptions() Options {
	return Options{
		ToggleLine:         0,
		DefaultFrequency:   1,
		TemperatureChannel: ChannelTemperature,
		AirlockChannel:     9,
		AirlockThreshold:   26860,
		TimeUnit:           time.Second,
	}
}

//Driver принимает события подключения и отключения U3 и выполняет
//операции над портами по идентификатору устройства.
type Driver struct {
	registry *Registry
	opts     Options
}

//NewDriver создаёт драйвер с пустой таблицей устройств.
func NewDriver(opts Options) *Driver {
	if opts.TimeUnit <= 0 {
		opts.TimeUnit = time.Second
	}
	return &Driver{registry: NewRegistry(), opts: opts}
}

//Attach настраивает только что подключённое устройство и регистрирует его.
//При любой ошибке транспорт закрывается, а слот не занимается.
func (drv *Driver) Attach(t Transport) (id Identity, err error) {
	if nil == t {
		err = errors.New("Attach(): nil transport")
		return
	}
	dev := newDevice(t, drv.opts)

	if err = dev.handshake(); nil != err {
		dev.pipe.close()
		dev.pipe.drain()
		logError(componentDriver, "attach aborted", "error", err)
		err = fmt.Errorf("Attach(): %w", err)
		return
	}

	// Обработчик отключения ставится до начала опроса. Пока слот не занят,
	// он только отмечает отключение, и его доводит до конца сам Attach.
	var (
		slotMu     sync.Mutex
		slot       Identity
		registered bool
		gone       bool
	)
	dev.pipe.setOnRemoved(func() {
		slotMu.Lock()
		gone = true
		slotID, ok := slot, registered
		slotMu.Unlock()
		if !ok {
			return
		}
		if err := drv.detach(slotID, dev); nil != err {
			logDebug(componentDriver, "removal already handled", "identity", int(slotID), "error", err)
		}
	})

	dev.c.start()

	if id, err = drv.registry.Allocate(dev); nil != err {
		dev.shutdown()
		logError(componentDriver, "attach aborted", "error", err)
		err = fmt.Errorf("Attach(): %w", err)
		return
	}

	slotMu.Lock()
	slot, registered = id, true
	early := gone
	slotMu.Unlock()

	if early {
		drv.detach(id, dev)
		logWarn(componentDriver, "device removed during attach", "identity", int(id))
		err = fmt.Errorf("Attach(): %w", ErrDeviceRemoved)
		id = 0
		return
	}

	logInfo(componentDriver, "device attached", "identity", int(id))
	return
}

//Detach отключает устройство: будит всех ждущих, останавливает таймеры
//и освобождает слот.
func (drv *Driver) Detach(id Identity) error {
	return drv.detach(id, nil)
}

func (drv *Driver) detach(id Identity, want *Device) error {
	dev, err := drv.registry.take(id.Base(), want)
	if nil != err {
		return fmt.Errorf("Detach(): %w", err)
	}
	err = dev.shutdown()
	logInfo(componentDriver, "device detached", "identity", int(id.Base()))
	if nil != err {
		logWarn(componentDriver, "transport close", "identity", int(id.Base()), "error", err)
	}
	return nil
}

//Close отключает все устройства.
func (drv *Driver) Close() error {
	var errs []error
	for _, id := range drv.registry.Identities() {
		if err := drv.Detach(id); nil != err && !errors.Is(err, ErrSlotEmpty) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (drv *Driver) lookup(op string, id Identity) (dev *Device, err error) {
	dev, err = drv.registry.Lookup(id)
	if nil != err {
		err = fmt.Errorf("%s(): %w", op, err)
	}
	return
}

//Removed канал, который закрывается при отключении устройства.
func (drv *Driver) Removed(id Identity) (<-chan struct{}, error) {
	dev, err := drv.lookup("Removed", id)
	if nil != err {
		return nil, err
	}
	return dev.Removed(), nil
}

//OpenPortA запускает переключение выхода с периодом по умолчанию.
func (drv *Driver) OpenPortA(id Identity) error {
	dev, err := drv.lookup("OpenPortA", id)
	if nil != err {
		return err
	}
	return dev.a.open()
}

//ClosePortA останавливает переключение и выключает выход.
func (drv *Driver) ClosePortA(id Identity) error {
	dev, err := drv.lookup("ClosePortA", id)
	if nil != err {
		return err
	}
	return dev.a.close()
}

//ReadPortA сколько целых единиц времени осталось до следующего переключения.
func (drv *Driver) ReadPortA(id Identity) (uint32, error) {
	dev, err := drv.lookup("ReadPortA", id)
	if nil != err {
		return 0, err
	}
	return dev.a.read()
}

//WritePortA задаёт период переключения; 0 останавливает после текущего цикла.
func (drv *Driver) WritePortA(id Identity, frequency uint8) error {
	dev, err := drv.lookup("WritePortA", id)
	if nil != err {
		return err
	}
	return dev.a.write(frequency)
}

//ReadTemperature блокирующее чтение температуры в градусах Цельсия.
func (drv *Driver) ReadTemperature(ctx context.Context, id Identity) (int32, error) {
	dev, err := drv.lookup("ReadTemperature", id)
	if nil != err {
		return 0, err
	}
	return dev.b.read(ctx)
}

//ReadPortB то же, что ReadTemperature, с записью результата в buf
//(int32 little-endian). buf должен вмещать 4 байта.
func (drv *Driver) ReadPortB(ctx context.Context, id Identity, buf []byte) (n int, err error) {
	if len(buf) < temperatureSize {
		err = fmt.Errorf("ReadPortB(): %w: need %d bytes", ErrBufferTooSmall, temperatureSize)
		return
	}
	celsius, err := drv.ReadTemperature(ctx, id)
	if nil != err {
		return
	}
	binary.LittleEndian.PutUint32(buf, uint32(celsius))
	n = temperatureSize
	return
}

//ReadPortC ждёт открытия airlock и пишет в buf сообщение AirlockMessage.
func (drv *Driver) ReadPortC(ctx context.Context, id Identity, buf []byte) (int, error) {
	dev, err := drv.lookup("ReadPortC", id)
	if nil != err {
		return 0, err
	}
	return dev.c.read(ctx, buf)
}

//AirlockState текущее состояние порта C без ожидания.
func (drv *Driver) AirlockState(id Identity) (AirlockState, error) {
	dev, err := drv.lookup("AirlockState", id)
	if nil != err {
		return AirlockError, err
	}
	return dev.c.current(), nil
}
