package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const displayReadyTimeout = 5 * time.Second

// display is the X server headful Chrome renders into. proc is nil when
// an X server was already listening on the display.
type display struct {
	name   string
	proc   *exec.Cmd
	logger *slog.Logger
}

// socketPath maps ":99" or ":99.0" to the X server's unix socket.
func socketPath(name string) (string, error) {
	num, ok := strings.CutPrefix(name, ":")
	if !ok {
		return "", fmt.Errorf("display %q: want :N", name)
	}
	num, _, _ = strings.Cut(num, ".")
	if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("display %q: want :N", name)
	}
	return "/tmp/.X11-unix/X" + num, nil
}

// startDisplay returns a display on name, spawning Xvfb unless an X server
// already owns it, and waits until the server accepts connections.
func startDisplay(ctx context.Context, name string, logger *slog.Logger) (*display, error) {
	sock, err := socketPath(name)
	if err != nil {
		return nil, err
	}
	d := &display{name: name, logger: logger}
	if _, err := os.Stat(sock); err == nil {
		logger.Info("browser: reusing x display", "display", name)
		return d, nil
	}

	d.proc = exec.Command("Xvfb", name, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := d.proc.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}

	deadline := time.Now().Add(displayReadyTimeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			d.stop()
			return nil, fmt.Errorf("xvfb %s: socket %s not ready after %s", name, sock, displayReadyTimeout)
		}
		select {
		case <-ctx.Done():
			d.stop()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	logger.Info("browser: xvfb started", "display", name, "pid", d.proc.Process.Pid)
	return d, nil
}

// stop kills the Xvfb process this display spawned, if any.
func (d *display) stop() {
	if d == nil || d.proc == nil || d.proc.Process == nil {
		return
	}
	d.proc.Process.Kill()
	d.proc.Wait()
	d.logger.Info("browser: xvfb stopped", "display", d.name)
	d.proc = nil
}
