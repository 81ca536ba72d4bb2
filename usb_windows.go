package labjack

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WinUSB не входит в x/sys, функции берём из winusb.dll.
var (
	modwinusb = windows.NewLazySystemDLL("winusb.dll")

	procWinUsbInitialize    = modwinusb.NewProc("WinUsb_Initialize")
	procWinUsbFree          = modwinusb.NewProc("WinUsb_Free")
	procWinUsbWritePipe     = modwinusb.NewProc("WinUsb_WritePipe")
	procWinUsbReadPipe      = modwinusb.NewProc("WinUsb_ReadPipe")
	procWinUsbSetPipePolicy = modwinusb.NewProc("WinUsb_SetPipePolicy")
)

const pipeTransferTimeout = 0x03

type winusbPipe struct {
	file    windows.Handle
	winusb  uintptr
	timeout time.Duration
}

func (p *winusbPipe) setTimeout(endpoint uint8, timeout time.Duration) error {
	ms := uint32(timeout.Milliseconds())
	r1, _, e1 := procWinUsbSetPipePolicy.Call(p.winusb, uintptr(endpoint), pipeTransferTimeout,
		unsafe.Sizeof(ms), uintptr(unsafe.Pointer(&ms)))
	if r1 == 0 {
		return e1
	}
	return nil
}

func (p *winusbPipe) transfer(proc *windows.LazyProc, endpoint uint8, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n uint32
	r1, _, e1 := proc.Call(p.winusb, uintptr(endpoint),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)),
		uintptr(unsafe.Pointer(&n)), 0)
	if r1 == 0 {
		return int(n), e1
	}
	return int(n), nil
}

func (p *winusbPipe) bulkOut(buf []byte, timeout time.Duration) (int, error) {
	return p.transfer(procWinUsbWritePipe, EndpointOut, buf)
}

func (p *winusbPipe) bulkIn(buf []byte, timeout time.Duration) (int, error) {
	return p.transfer(procWinUsbReadPipe, EndpointIn, buf)
}

func (p *winusbPipe) classify(err error) TransferStatus {
	switch {
	case errors.Is(err, windows.ERROR_SEM_TIMEOUT):
		return TransferTimeout
	case errors.Is(err, windows.ERROR_OPERATION_ABORTED):
		return TransferCancelled
	case errors.Is(err, windows.ERROR_DEVICE_NOT_CONNECTED),
		errors.Is(err, windows.ERROR_BAD_COMMAND),
		errors.Is(err, windows.ERROR_GEN_FAILURE):
		return TransferNoDevice
	default:
		return TransferError
	}
}

func (p *winusbPipe) close() error {
	if p.winusb != 0 {
		procWinUsbFree.Call(p.winusb)
		p.winusb = 0
	}
	if windows.InvalidHandle != p.file {
		err := windows.CloseHandle(p.file)
		p.file = windows.InvalidHandle
		return err
	}
	return nil
}

//OpenUSB открывает U3 через WinUSB по пути интерфейса устройства (device_path в конфигурации).
func OpenUSB(cfg DeviceConfig) (transport Transport, err error) {
	if "" == cfg.DevicePath {
		err = errors.New("OpenUSB(): device_path is required on windows")
		return
	}
	name, err := windows.UTF16PtrFromString(cfg.DevicePath)
	if nil != err {
		err = fmt.Errorf("OpenUSB(): %w", err)
		return
	}

	file, err := windows.CreateFile(name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED, 0)
	if nil != err {
		err = fmt.Errorf("OpenUSB(): %s: %w", cfg.DevicePath, err)
		return
	}

	pipe := &winusbPipe{file: file, timeout: cfg.Timeout()}
	r1, _, e1 := procWinUsbInitialize.Call(uintptr(file), uintptr(unsafe.Pointer(&pipe.winusb)))
	if r1 == 0 {
		windows.CloseHandle(file)
		err = fmt.Errorf("OpenUSB(): WinUsb_Initialize: %w", e1)
		return
	}

	for _, ep := range []uint8{EndpointOut, EndpointIn} {
		if err = pipe.setTimeout(ep, pipe.timeout); nil != err {
			pipe.close()
			err = fmt.Errorf("OpenUSB(): pipe policy 0x%02x: %w", ep, err)
			return
		}
	}

	transport = newUSBTransport(pipe, cfg.Timeout())
	logInfo(componentTransport, "device opened", "path", cfg.DevicePath)
	return
}

//USBPresent показывает, существует ли путь интерфейса устройства.
func USBPresent(cfg DeviceConfig) bool {
	name, err := windows.UTF16PtrFromString(cfg.DevicePath)
	if nil != err {
		return false
	}
	_, err = windows.GetFileAttributes(name)
	return nil == err
}
