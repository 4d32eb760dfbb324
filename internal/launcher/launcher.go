// Package launcher opens share pages and habit links in the user's browser.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"runtime"

	"github.com/julianstephens/streaktoot/internal/logger"
)

var (
	goos        = runtime.GOOS
	startCmd    = func(name string, args ...string) error { return exec.Command(name, args...).Start() }
	lookPath    = exec.LookPath
	getenvFunc  = os.Getenv
	errNoOpener = errors.New("no browser opener available")
)

type Launcher struct {
	Out io.Writer
	// NoBrowser only prints the URL.
	NoBrowser bool
}

func New(out io.Writer, noBrowser bool) *Launcher {
	return &Launcher{Out: out, NoBrowser: noBrowser}
}

// Open shows target in the browser. The URL is always printed so it can be
// copied when no browser is reachable; failing to launch one is not an error.
func (l *Launcher) Open(target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", target)
	}

	out := l.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "🔗 %s\n", target)

	if l.NoBrowser {
		return nil
	}
	if err := openBrowser(target); err != nil {
		logger.Debug("browser not opened", "err", err)
	}
	return nil
}

func openBrowser(target string) error {
	name, args, err := opener()
	if err != nil {
		return err
	}
	return startCmd(name, append(args, target)...)
}

func opener() (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", nil, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}, nil
	default:
		if getenvFunc("DISPLAY") == "" && getenvFunc("WAYLAND_DISPLAY") == "" {
			return "", nil, errNoOpener
		}
		for _, candidate := range []string{"xdg-open", "wslview"} {
			if _, err := lookPath(candidate); err == nil {
				return candidate, nil, nil
			}
		}
		return "", nil, errNoOpener
	}
}
