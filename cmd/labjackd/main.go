// Команда labjackd держит U3 подключённым, переключает порт A и публикует
// температуру и состояние airlock в MQTT.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"labjack"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: labjackd <config.yaml>")
	}

	cfg, err := labjack.LoadConfig(os.Args[1])
	if nil != err {
		log.Fatalf("config load failed: %v", err)
	}

	logger := labjack.NewLogger(os.Stdout, cfg.Logging)
	labjack.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := connect(cfg.MQTT, logger)
	if nil != err {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	defer pub.close()

	driver := labjack.NewDriver(cfg.Ports.Options())
	defer driver.Close()

	var sess *session
	w := &labjack.Watcher{
		Driver:   driver,
		Open:     func() (labjack.Transport, error) { return labjack.OpenUSB(cfg.Device) },
		Present:  func() bool { return labjack.USBPresent(cfg.Device) },
		Interval: cfg.Device.WatchInterval(),
		OnAttach: func(id labjack.Identity) {
			sess = startSession(ctx, driver, id, pub, cfg, logger)
		},
		OnDetach: func(id labjack.Identity) {
			if nil != sess {
				sess.stop()
				sess = nil
			}
		},
	}

	logger.Info("labjackd started", "vendor", cfg.Device.VendorID, "product", cfg.Device.ProductID)
	if err := w.Run(ctx); nil != err && !errors.Is(err, context.Canceled) {
		logger.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("labjackd stopped")
}
