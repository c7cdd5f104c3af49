// Package mpytool builds command lines for the external mpytool binary.
//
// mpytool owns the serial transport and the on-device filesystem
// protocol; this package only knows its argument dialect: an optional
// port flag, a subcommand (put-list, get-all, reset, monitor, repl,
// erase, ls, info), and for put-list the resolved transfer list
// serialized as device-path/local-path pairs. Subcommands chain with
// "--" so one invocation can upload, reset, and monitor in sequence.
package mpytool

import (
	"strings"

	"github.com/mpykit/mpykit/internal/config"
	"github.com/mpykit/mpykit/internal/plan"
)

// multiplePortsMarker is the diagnostic mpytool prints when PortAuto is
// requested but more than one serial device is attached.
const multiplePortsMarker = "Multiple serial ports found"

// Invocation is a fully built mpytool command line.
type Invocation struct {
	// Args is the argument vector, excluding the binary itself.
	Args []string

	// Dir is the working directory for the process; empty means inherit.
	Dir string
}

// WithPort returns a copy of the invocation pinned to an explicit serial
// port. Used to retry after a multiple-ports diagnostic.
func (inv Invocation) WithPort(port string) Invocation {
	args := append([]string{"-p", port}, stripPortFlag(inv.Args)...)
	return Invocation{Args: args, Dir: inv.Dir}
}

// stripPortFlag removes an existing leading -p flag pair.
func stripPortFlag(args []string) []string {
	if len(args) >= 2 && args[0] == "-p" {
		return args[2:]
	}
	return args
}

// portArgs returns the port flag for an explicit port; PortAuto lets
// mpytool enumerate devices itself.
func portArgs(port string) []string {
	if port == "" || port == config.PortAuto {
		return nil
	}
	return []string{"-p", port}
}

// SerializeOps flattens a resolved plan into put-list pairs. Each
// operation contributes its device path followed by its local path;
// directory operations carry a trailing slash on the device path.
func SerializeOps(ops []plan.Operation) []string {
	out := make([]string, 0, len(ops)*2)
	for _, op := range ops {
		dev := op.DevicePath
		if op.IsDir && !strings.HasSuffix(dev, "/") {
			dev += "/"
		}
		out = append(out, dev, op.LocalPath)
	}
	return out
}

// PutList builds the upload invocation for a resolved plan. With reset
// set, a device reset is chained after the upload; with monitor set,
// the device's output stream is attached after that (deploy chains
// both, sync only the reset). Restore and one-off copies chain neither
// so the running program is left undisturbed.
func PutList(cfg *config.ProjectConfig, p *plan.Plan, reset, monitor bool) Invocation {
	args := portArgs(cfg.Port)
	args = append(args, "put-list")
	args = append(args, SerializeOps(p.Operations)...)
	if reset {
		args = append(args, "--", "reset")
	}
	if monitor {
		args = append(args, "--", "monitor")
	}
	return Invocation{Args: args, Dir: cfg.Root}
}

// GetAll builds the backup invocation: download the device tree into dir.
func GetAll(port, dir string) Invocation {
	args := append(portArgs(port), "get-all", dir)
	return Invocation{Args: args}
}

// Reset builds a device reset, optionally followed by monitor.
func Reset(port string, monitor bool) Invocation {
	args := append(portArgs(port), "reset")
	if monitor {
		args = append(args, "--", "monitor")
	}
	return Invocation{Args: args}
}

// Monitor builds the output-monitor invocation.
func Monitor(port string) Invocation {
	return Invocation{Args: append(portArgs(port), "monitor")}
}

// Repl builds the interactive REPL invocation.
func Repl(port string) Invocation {
	return Invocation{Args: append(portArgs(port), "repl")}
}

// Erase builds the remove-all-files invocation.
func Erase(port string) Invocation {
	return Invocation{Args: append(portArgs(port), "erase")}
}

// Ls builds the device file-tree listing invocation.
func Ls(port string) Invocation {
	return Invocation{Args: append(portArgs(port), "ls")}
}

// Info builds the device-info invocation.
func Info(port string) Invocation {
	return Invocation{Args: append(portArgs(port), "info")}
}

// ParsePortList extracts candidate serial ports from mpytool output.
//
// When invoked with the auto port and several devices attached, mpytool
// fails with a "Multiple serial ports found" diagnostic followed by one
// port per line. The caller re-prompts with the extracted list and
// retries with an explicit -p flag.
//
// Parameters:
//   - output: Combined process output
//
// Returns:
//   - []string: The listed ports, or nil when the diagnostic is absent
func ParsePortList(output string) []string {
	var ports []string
	inList := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(line, multiplePortsMarker) {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		if strings.HasPrefix(trimmed, "/dev/") || strings.HasPrefix(trimmed, "COM") {
			ports = append(ports, trimmed)
			continue
		}
		if trimmed != "" {
			break
		}
	}
	return ports
}
