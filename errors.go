package labjack

import (
	"errors"
	"fmt"
)

// Ошибки драйвера. Вызывающий код проверяет их через errors.Is.
var (
	// ErrTransport - любая неудачная передача по bulk-каналу.
	ErrTransport = errors.New("transport error")

	// ErrChecksum - ответ повреждён или устройство отвергло контрольную сумму команды.
	ErrChecksum = errors.New("bad checksum")

	// ErrShortPacket - ответ короче заголовка.
	ErrShortPacket = fmt.Errorf("short packet: %w", ErrChecksum)

	// ErrDeviceRemoved - устройство отключено или отключается.
	ErrDeviceRemoved = errors.New("device removed")

	// ErrNoRoom - все слоты таблицы устройств заняты.
	ErrNoRoom = errors.New("no free device slot")

	// ErrNotFound - по этому идентификатору устройство не подключено.
	ErrNotFound = errors.New("device not found")

	// ErrInvalidIdentity - идентификатор вне таблицы слотов.
	ErrInvalidIdentity = errors.New("invalid device identity")

	// ErrSlotEmpty - повторное освобождение слота.
	ErrSlotEmpty = errors.New("slot already empty")

	// ErrBufferTooSmall - в буфер вызывающего не помещается результат.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrInterrupted - блокирующее чтение прервано до получения результата.
	ErrInterrupted = errors.New("read interrupted")
)

//DeviceError код ошибки, который прошивка U3 вернула в байте статуса.
type DeviceError struct {
	Code uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error code %d", e.Code)
}

//TransportError неудачная передача по одному из bulk-каналов.
type TransportError struct {
	Op     string
	Status TransferStatus
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// Unwrap: отключение устройства распознаётся как ErrDeviceRemoved, остальное как ErrTransport.
func (e *TransportError) Unwrap() error {
	if e.Status == TransferNoDevice {
		return ErrDeviceRemoved
	}
	return ErrTransport
}
