package labjack

//USB-идентификаторы U3
const (
	IDVendorLabJack = uint16(0x0CD5)
	IDProductU3     = uint16(0x0003)
)

// Bulk-каналы U3.
const (
	EndpointOut = 0x01
	EndpointIn  = 0x82
)

//TransferStatus результат завершения одной передачи.
type TransferStatus int

// Варианты завершения передачи.
const (
	TransferOK        TransferStatus = iota // успешно
	TransferCancelled                       // отменена при закрытии транспорта
	TransferNoDevice                        // устройство отключено
	TransferTimeout                         // истёк таймаут
	TransferError                           // прочие ошибки ввода-вывода
)

func (s TransferStatus) String() string {
	switch s {
	case TransferOK:
		return "ok"
	case TransferCancelled:
		return "cancelled"
	case TransferNoDevice:
		return "no device"
	case TransferTimeout:
		return "timeout"
	case TransferError:
		return "error"
	default:
		return "unknown"
	}
}

//Completion вызывается ровно один раз для каждой отправленной передачи,
//на произвольной горутине.
type Completion func(status TransferStatus, n int)

//Transport асинхронный доступ к bulk-каналам одного устройства.
//
//Буфер принадлежит транспорту до вызова Completion; вызывающий не трогает
//его и не отправляет повторно, пока передача не завершилась.
//Close отменяет все незавершённые передачи и возвращается только после того,
//как все их Completion отработали.
type Transport interface {
	SubmitWrite(endpoint uint8, buf []byte, done Completion)
	SubmitRead(endpoint uint8, buf []byte, done Completion)
	Close() error
}
