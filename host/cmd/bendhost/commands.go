package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"bendlink/host/link"
	"bendlink/host/rig"
)

// execute runs one interactive command line
func execute(r *rig.Rig, l *link.Link, line string, out io.Writer) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		printHelp(out)

	case "angle":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: angle <v|h> <degrees>")
		}
		axis, err := rig.ParseAxis(args[0])
		if err != nil {
			return false, err
		}
		deg, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return false, fmt.Errorf("bad angle %q", args[1])
		}
		if err := r.SetAngle(axis, deg); err != nil {
			return false, err
		}
		printAngles(out, r)

	case "up", "down":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: %s <v|h>", cmd)
		}
		axis, err := rig.ParseAxis(args[0])
		if err != nil {
			return false, err
		}
		if err := r.Nudge(axis, cmd == "up"); err != nil {
			return false, err
		}
		printAngles(out, r)

	case "offset":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: offset <dx_px> <dy_px>")
		}
		dx, errX := strconv.ParseFloat(args[0], 64)
		dy, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return false, fmt.Errorf("bad offset %q %q", args[0], args[1])
		}
		applied, err := r.ApplyOffset(dx, dy)
		if err != nil {
			return false, err
		}
		if !applied {
			fmt.Fprintln(out, "offset recorded (no correction this sample)")
		}
		printAngles(out, r)

	case "auto":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, fmt.Errorf("usage: auto <on|off>")
		}
		r.SetAutoCorrect(args[0] == "on")
		fmt.Fprintf(out, "auto correction %s\n", args[0])

	case "reset":
		r.ResetController()
		fmt.Fprintln(out, "controller reset")

	case "send":
		if err := l.Send(); err != nil {
			return false, err
		}

	case "status":
		printStatus(out, r, l)

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for available commands)\n", cmd)
	}
	return false, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help              - Show this help message")
	fmt.Fprintln(out, "  angle <v|h> <deg> - Set an axis angle")
	fmt.Fprintln(out, "  up|down <v|h>     - Step an axis by one increment")
	fmt.Fprintln(out, "  offset <dx> <dy>  - Feed a measured offset in pixels to the controller")
	fmt.Fprintln(out, "  auto <on|off>     - Enable or disable offset correction")
	fmt.Fprintln(out, "  reset             - Reset the controller state")
	fmt.Fprintln(out, "  send              - Send the command payload now")
	fmt.Fprintln(out, "  status            - Show link and device status")
	fmt.Fprintln(out, "  quit/exit/q       - Exit the program")
	fmt.Fprintln(out)
}

func printAngles(out io.Writer, r *rig.Rig) {
	a := r.Angles()
	fmt.Fprintf(out, "vertical %.1f  horizontal %.1f\n", a[rig.Vertical], a[rig.Horizontal])
}

func printStatus(out io.Writer, r *rig.Rig, l *link.Link) {
	printAngles(out, r)
	fmt.Fprintf(out, "auto correction: %v\n", r.AutoCorrect())

	st := l.Stats()
	fmt.Fprintf(out, "link: open=%v session=%s frames=%d framing_errors=%d overflows=%d\n",
		l.IsOpen(), l.SessionID(), st.Frames, st.FramingErrors, st.Overflows)

	t, ok, err := r.Telemetry()
	switch {
	case err != nil:
		fmt.Fprintf(out, "device: bad telemetry: %v\n", err)
	case !ok:
		fmt.Fprintln(out, "device: no telemetry yet")
	default:
		fmt.Fprintf(out, "device: vertical %.1f horizontal %.1f power=%v pings=%d frames=%d errors=%d\n",
			t.Angles[0], t.Angles[1], t.PowerOn, t.ActivationCount, t.Frames, t.FramingErrors)
		fmt.Fprintf(out, "        roll %.2f pitch %.2f yaw %.2f\n", t.Roll, t.Pitch, t.Yaw)
	}
}
