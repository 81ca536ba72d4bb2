package labjack

import (
	"encoding/binary"
)

// Размеры пакетов протокола U3.
const (
	configPacketSize   = 12 // ConfigIO, команда и ответ
	commandPacketSize  = 10 // Feedback, команда
	responsePacketSize = 12 // Feedback, ответ
)

// Смещения полей заголовка расширенного пакета.
const (
	offChecksum8   = 0
	offCommand     = 1
	offWordCount   = 2
	offExtCommand  = 3
	offChecksum16L = 4
	offChecksum16H = 5
	headerSize     = 6

	offStatus  = 6 // байт ошибки в ответе
	offCmdEcho = 6 // команда Feedback: echo, затем IOType и параметры
	offCmdData = 7
)

// Коды команд.
const (
	cmdExtended = 0xF8
	extConfigIO = 0x0B
	extFeedback = 0x00
	badChecksum = 0xB8
)

// Типы IO для Feedback.
const (
	ioAIN           = 1
	ioBitStateWrite = 11
	ioBitDirWrite   = 13
)

// Каналы АЦП.
const (
	ChannelTemperature = 30
	ChannelGround      = 31
)

// Поля ConfigIO.
const (
	offConfigWriteMask = 6
	offConfigFIOAnalog = 10
	offConfigEIOAnalog = 11

	configWriteAll = 15 // таймеры, счётчики, FIO и EIO
	eioFirstAIN    = 8  // EIO0 = AIN8
)

// Ответ Feedback: echo в байте 8, данные AIN с байта 9.
const (
	offRespEcho = 8
	offRespAIN  = 9
)

//FixChecksum8 считает 8-битную контрольную сумму по байтам [1, len) и записывает её в байт 0.
//Перенос сворачивается два раза.
func FixChecksum8(packet []byte) {
	if len(packet) == 0 {
		return
	}
	packet[offChecksum8] = checksum8(packet)
}

//FixChecksum16 считает 16-битную сумму по байтам [6, len), записывает её в байты 4 и 5
//и затем исправляет 8-битную сумму заголовка.
func FixChecksum16(packet []byte) {
	if len(packet) < headerSize {
		return
	}
	binary.LittleEndian.PutUint16(packet[offChecksum16L:], checksum16(packet))
	FixChecksum8(packet[:headerSize])
}

func checksum8(packet []byte) byte {
	var acc uint16
	for _, b := range packet[1:] {
		acc += uint16(b)
	}
	acc = (acc & 0xff) + (acc >> 8)
	acc = (acc & 0xff) + (acc >> 8)
	return byte(acc)
}

func checksum16(packet []byte) uint16 {
	var acc uint16
	for _, b := range packet[headerSize:] {
		acc += uint16(b)
	}
	return acc
}

//ValidateResponse проверяет ответ устройства. Порядок проверок:
//признак отвергнутой команды (0xB8 0xB8), контрольные суммы, байт статуса.
//Ошибка прошивки возвращается как *DeviceError с исходным кодом.
func ValidateResponse(packet []byte) error {
	if len(packet) >= 2 && packet[0] == badChecksum && packet[1] == badChecksum {
		return ErrChecksum
	}
	if len(packet) <= offStatus {
		return ErrShortPacket
	}
	if checksum8(packet[:headerSize]) != packet[offChecksum8] {
		return ErrChecksum
	}
	if checksum16(packet) != binary.LittleEndian.Uint16(packet[offChecksum16L:]) {
		return ErrChecksum
	}
	if code := packet[offStatus]; code != 0 {
		return &DeviceError{Code: code}
	}
	return nil
}

func newExtendedPacket(size int, ext byte) []byte {
	p := make([]byte, size)
	p[offCommand] = cmdExtended
	p[offWordCount] = byte((size - headerSize) / 2)
	p[offExtCommand] = ext
	return p
}

// newConfigIOPacket: все FIO цифровые, аналоговым делается только вход airlock
// (он должен быть на EIO, т.е. AIN8..AIN15).
func newConfigIOPacket(airlockChannel uint8) []byte {
	p := newExtendedPacket(configPacketSize, extConfigIO)
	p[offConfigWriteMask] = configWriteAll
	p[offConfigFIOAnalog] = 0x00
	if airlockChannel >= eioFirstAIN && airlockChannel < eioFirstAIN+8 {
		p[offConfigEIOAnalog] = 1 << (airlockChannel - eioFirstAIN)
	}
	FixChecksum16(p)
	return p
}

func newFeedbackPacket(echo byte, payload ...byte) []byte {
	p := newExtendedPacket(commandPacketSize, extFeedback)
	p[offCmdEcho] = echo
	copy(p[offCmdData:], payload)
	FixChecksum16(p)
	return p
}

func newAnalogReadPacket(echo, positive, negative byte) []byte {
	return newFeedbackPacket(echo, ioAIN, positive, negative)
}

func newBitDirWritePacket(echo, line byte, output bool) []byte {
	return newFeedbackPacket(echo, ioBitDirWrite, bitArg(line, output))
}

func newBitStateWritePacket(echo, line byte, high bool) []byte {
	return newFeedbackPacket(echo, ioBitStateWrite, bitArg(line, high))
}

// старший бит задаёт направление или состояние линии
func bitArg(line byte, set bool) byte {
	if set {
		return line | 0x80
	}
	return line & 0x7f
}

func analogValue(resp []byte) (raw uint16, err error) {
	if len(resp) < offRespAIN+2 {
		err = ErrShortPacket
		return
	}
	raw = binary.LittleEndian.Uint16(resp[offRespAIN:])
	return
}

//CelsiusFromRaw переводит отсчёты АЦП внутреннего датчика температуры в градусы Цельсия.
func CelsiusFromRaw(raw uint16) int32 {
	return int32(raw)*13/1000 - 273
}
