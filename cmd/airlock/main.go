// Команда airlock подключает U3 и один раз читает порт C: чтение
// завершается, когда датчик airlock превысит порог.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"labjack"
)

const messageSize = 14

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (defaults are used when empty)")
	flag.Parse()

	if err := run(*cfgPath); nil != err {
		fmt.Fprintln(os.Stderr, "airlock:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg := labjack.DefaultConfig()
	if "" != cfgPath {
		var err error
		if cfg, err = labjack.LoadConfig(cfgPath); nil != err {
			return err
		}
	}
	labjack.SetLogger(labjack.NewLogger(os.Stderr, cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := labjack.OpenUSB(cfg.Device)
	if nil != err {
		return err
	}

	driver := labjack.NewDriver(cfg.Ports.Options())
	defer driver.Close()

	id, err := driver.Attach(transport)
	if nil != err {
		return err
	}

	mesg := make([]byte, messageSize)
	n, err := driver.ReadPortC(ctx, id.Port(labjack.PortC), mesg)
	if nil != err {
		if errors.Is(err, labjack.ErrInterrupted) {
			return fmt.Errorf("read aborted: %w", err)
		}
		return err
	}

	fmt.Printf("mesg was:\n %s\n", mesg[:n])
	return nil
}
