//go:build rp2040

package main

import (
	"machine"
	"time"

	"bendlink/core"
	"bendlink/protocol"
)

// Board wiring
const (
	verticalServoPin    = machine.GPIO2
	horizontalServoPin  = machine.GPIO3
	powerRelayPin       = core.GPIOPin(15)
	powerRelayActiveLow = false

	reportInterval = 100 * time.Millisecond
)

var (
	// Buffer between the USB reader and the main loop
	inputBuffer *protocol.FifoBuffer
	device      *core.Device

	// Debug counters
	msgerrors uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	servos, err := NewServoPWMDriver(verticalServoPin, horizontalServoPin)
	if err != nil {
		halt()
	}
	relay, err := core.NewPinSwitch(NewRPGPIODriver(), powerRelayPin, powerRelayActiveLow)
	if err != nil {
		halt()
	}

	clock := hardwareClock{}
	device, err = core.NewDevice(core.DefaultDeviceConfig(), servos, relay, clock, usbWriter{})
	if err != nil {
		halt()
	}
	device.SetErrorHandler(func(error) {
		msgerrors++
	})

	inputBuffer = protocol.NewFifoBuffer(256)
	go usbReaderLoop()

	lastReport := clock.Now()
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				device.Drain(inputBuffer)
			}

			device.Tick()

			if clock.Since(lastReport) >= reportInterval {
				lastReport = clock.Now()
				device.Report()
			}
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// usbReaderLoop copies USB bytes into inputBuffer
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}
			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// halt parks the firmware with the relay untouched (open after reset)
func halt() {
	for {
		time.Sleep(time.Second)
	}
}
