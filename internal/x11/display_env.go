package x11

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoDisplay is returned when no X display can be located.
var ErrNoDisplay = errors.New("no X display available")

// DisplayEnv names the X server and credentials the engine connects with.
type DisplayEnv struct {
	Display    string
	XAuthority string
	// Source records where Display came from: env, config, session or socket.
	Source string
}

var (
	lookupEnvFn               = os.LookupEnv
	userHomeDirFn             = os.UserHomeDir
	statFn                    = os.Stat
	runCommandOutputFn        = runCommandOutput
	readFileFn                = os.ReadFile
	readDirFn                 = os.ReadDir
	detectSessionX11EnvFn     = detectSessionX11Env
	detectDisplayFromSocketFn = detectDisplayFromSockets
)

// ResolveDisplayEnv works out DISPLAY and XAUTHORITY for a process that may
// have been started without a graphical environment, such as an MCP server
// launched by an editor. Lookup order for DISPLAY is process env, the
// configured value, the user's loginctl session, then the highest socket in
// /tmp/.X11-unix. XAUTHORITY falls back to ~/.Xauthority.
func ResolveDisplayEnv(configDisplay, configXAuthority string) (DisplayEnv, error) {
	var out DisplayEnv

	out.Display = envValue("DISPLAY")
	out.XAuthority = envValue("XAUTHORITY")
	if out.Display != "" {
		out.Source = "env"
	}

	if out.Display == "" {
		if d := strings.TrimSpace(configDisplay); d != "" {
			out.Display = d
			out.Source = "config"
		}
	}
	if out.XAuthority == "" {
		out.XAuthority = strings.TrimSpace(configXAuthority)
	}

	if out.Display == "" || out.XAuthority == "" {
		detectedDisplay, detectedXAuthority := detectSessionX11EnvFn()
		if out.Display == "" && strings.TrimSpace(detectedDisplay) != "" {
			out.Display = strings.TrimSpace(detectedDisplay)
			out.Source = "session"
		}
		if out.XAuthority == "" {
			out.XAuthority = strings.TrimSpace(detectedXAuthority)
		}
	}

	if out.Display == "" {
		if d := detectDisplayFromSocketFn("/tmp/.X11-unix"); d != "" {
			out.Display = d
			out.Source = "socket"
		}
	}
	if out.Display == "" {
		return DisplayEnv{}, fmt.Errorf("%w; set display in config (e.g. display: \":1\") or export DISPLAY for the server", ErrNoDisplay)
	}

	if out.XAuthority == "" {
		home := envValue("HOME")
		if home == "" {
			if detected, err := userHomeDirFn(); err == nil {
				home = detected
			}
		}
		if home != "" {
			candidate := filepath.Join(home, ".Xauthority")
			if _, err := statFn(candidate); err == nil {
				out.XAuthority = candidate
			}
		}
	}

	return out, nil
}

// Apply exports the resolved values so the X client library picks them up.
func (d DisplayEnv) Apply() error {
	if err := os.Setenv("DISPLAY", d.Display); err != nil {
		return err
	}
	if d.XAuthority != "" {
		return os.Setenv("XAUTHORITY", d.XAuthority)
	}
	return nil
}

func envValue(key string) string {
	v, _ := lookupEnvFn(key)
	return strings.TrimSpace(v)
}

func runCommandOutput(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func detectSessionX11Env() (display string, xauthority string) {
	uid := strconv.Itoa(os.Getuid())
	out, err := runCommandOutputFn("loginctl", "list-sessions", "--no-legend")
	if err != nil {
		return "", ""
	}
	for _, sessionID := range parseLoginctlSessions(out, uid) {
		d := loginctlShowSessionProp(sessionID, "Display")
		if d == "" || strings.EqualFold(d, "n/a") {
			continue
		}

		xauth := ""
		leader := loginctlShowSessionProp(sessionID, "Leader")
		if leader != "" && leader != "0" {
			if envMap, err := readProcEnviron(leader); err == nil {
				if ed := strings.TrimSpace(envMap["DISPLAY"]); ed != "" {
					d = ed
				}
				xauth = strings.TrimSpace(envMap["XAUTHORITY"])
			}
		}
		return d, xauth
	}
	return "", ""
}

func parseLoginctlSessions(output string, uid string) []string {
	var sessions []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == uid {
			sessions = append(sessions, fields[0])
		}
	}
	return sessions
}

func loginctlShowSessionProp(sessionID string, prop string) string {
	out, err := runCommandOutputFn("loginctl", "show-session", sessionID, "-p", prop, "--value")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func readProcEnviron(pid string) (map[string]string, error) {
	data, err := readFileFn(filepath.Join("/proc", pid, "environ"))
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	for _, part := range strings.Split(string(data), "\x00") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env, nil
}

func detectDisplayFromSockets(dir string) string {
	entries, err := readDirFn(dir)
	if err != nil {
		return ""
	}

	var displays []int
	for _, entry := range entries {
		name := entry.Name()
		if len(name) < 2 || name[0] != 'X' {
			continue
		}
		n, err := strconv.Atoi(name[1:])
		if err != nil {
			continue
		}
		displays = append(displays, n)
	}

	if len(displays) == 0 {
		return ""
	}
	sort.Ints(displays)
	return ":" + strconv.Itoa(displays[len(displays)-1])
}
