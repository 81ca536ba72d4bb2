package labjack

import (
	"context"
	"time"
)

//Watcher следит за подключением одного U3: подключает его к Driver,
//когда устройство появляется, и отключает, когда оно пропадает.
type Watcher struct {
	Driver   *Driver
	Open     func() (Transport, error)
	Present  func() bool
	Interval time.Duration

	// OnAttach и OnDetach вызываются из горутины Run. OnDetach вызывается
	// до Driver.Detach; если устройство уже пропало, операции с портами вернут ошибку.
	OnAttach func(id Identity)
	OnDetach func(id Identity)
}

//Run работает до отмены ctx; при выходе отключает устройство.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		attached bool
		id       Identity
		removed  <-chan struct{}
	)

	detach := func(reason string) {
		if nil != w.OnDetach {
			w.OnDetach(id)
		}
		if err := w.Driver.Detach(id); nil != err {
			logDebug(componentWatcher, "detach", "identity", int(id), "error", err)
		}
		logInfo(componentWatcher, "device gone", "identity", int(id), "reason", reason)
		attached = false
		removed = nil
	}

	for {
		if !attached && w.present() {
			if newID, ch, err := w.attach(); nil != err {
				logWarn(componentWatcher, "attach failed", "error", err)
			} else {
				attached, id, removed = true, newID, ch
				if nil != w.OnAttach {
					w.OnAttach(id)
				}
			}
		}

		select {
		case <-ctx.Done():
			if attached {
				detach("shutdown")
			}
			return ctx.Err()
		case <-removed:
			detach("removed")
		case <-ticker.C:
			if attached && !w.present() {
				detach("unplugged")
			}
		}
	}
}

func (w *Watcher) present() bool {
	if nil == w.Present {
		return true
	}
	return w.Present()
}

func (w *Watcher) attach() (id Identity, removed <-chan struct{}, err error) {
	t, err := w.Open()
	if nil != err {
		return
	}
	if id, err = w.Driver.Attach(t); nil != err {
		return
	}
	removed, err = w.Driver.Removed(id)
	return
}
