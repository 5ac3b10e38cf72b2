//go:build rp2040

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"

	"bendlink/timeutil"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit microsecond timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// hardwareClock reports time since boot from the 1 MHz hardware timer. The
// watchdog and slew limiter only look at differences, so the epoch is boot.
type hardwareClock struct {
	timeutil.RealClock
}

func (hardwareClock) Now() time.Time {
	return time.UnixMicro(int64(GetHardwareUptime()))
}

func (c hardwareClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
