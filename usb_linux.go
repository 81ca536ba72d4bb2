package labjack

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/libusb"
)

type libusbPipe struct {
	ctx    *libusb.Context
	handle *libusb.DeviceHandle
	iface  int
}

func (p *libusbPipe) bulkOut(buf []byte, timeout time.Duration) (int, error) {
	return p.handle.BulkTransfer(EndpointOut, buf, len(buf), int(timeout.Milliseconds()))
}

func (p *libusbPipe) bulkIn(buf []byte, timeout time.Duration) (int, error) {
	return p.handle.BulkTransfer(EndpointIn, buf, len(buf), int(timeout.Milliseconds()))
}

// libusb отдаёт ошибки только текстом, поэтому разбираем сообщение
func (p *libusbPipe) classify(err error) TransferStatus {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no_device"), strings.Contains(msg, "no such device"):
		return TransferNoDevice
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return TransferTimeout
	case strings.Contains(msg, "interrupted"):
		return TransferCancelled
	default:
		return TransferError
	}
}

func (p *libusbPipe) close() error {
	var errs []error
	if nil != p.handle {
		errs = append(errs, p.handle.ReleaseInterface(p.iface))
		errs = append(errs, p.handle.Close())
		p.handle = nil
	}
	if nil != p.ctx {
		errs = append(errs, p.ctx.Close())
		p.ctx = nil
	}
	return errors.Join(errs...)
}

//OpenUSB открывает U3 через libusb и захватывает его интерфейс.
func OpenUSB(cfg DeviceConfig) (transport Transport, err error) {
	ctx, err := libusb.NewContext()
	if nil != err {
		err = fmt.Errorf("OpenUSB(): %w", err)
		return
	}

	_, handle, err := ctx.OpenDeviceWithVendorProduct(cfg.VendorID, cfg.ProductID)
	if nil != err {
		ctx.Close()
		err = fmt.Errorf("OpenUSB(): %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
		return
	}

	if err = handle.ClaimInterface(cfg.Interface); nil != err {
		handle.Close()
		ctx.Close()
		err = fmt.Errorf("OpenUSB(): claim interface %d: %w", cfg.Interface, err)
		return
	}

	pipe := &libusbPipe{ctx: ctx, handle: handle, iface: cfg.Interface}
	transport = newUSBTransport(pipe, cfg.Timeout())
	logInfo(componentTransport, "device opened",
		"vendor", fmt.Sprintf("%04x", cfg.VendorID), "product", fmt.Sprintf("%04x", cfg.ProductID))
	return
}

//USBPresent показывает, виден ли U3 в списке устройств.
func USBPresent(cfg DeviceConfig) (ok bool) {
	ctx, err := libusb.NewContext()
	if nil != err {
		logWarn(componentTransport, "libusb context", "error", err)
		return
	}
	defer ctx.Close()

	devices, err := ctx.GetDeviceList()
	if nil != err {
		logWarn(componentTransport, "device list", "error", err)
		return
	}

	for _, device := range devices {
		desc, err := device.GetDeviceDescriptor()
		if nil != err {
			continue
		}
		if desc.VendorID == cfg.VendorID && desc.ProductID == cfg.ProductID {
			ok = true
			return
		}
	}
	return
}
