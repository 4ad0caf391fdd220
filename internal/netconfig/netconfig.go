// Package netconfig manages the static DNS resolver list in the sysconfig
// network configuration and applies it with netconfig.
package netconfig

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/afero"
	"github.com/subosito/gotenv"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/fsatomic"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

const (
	// DefaultPath is the sysconfig network configuration.
	DefaultPath = "/etc/sysconfig/network/config"
	// DefaultReconfigureCommand applies resolver changes.
	DefaultReconfigureCommand = "/sbin/netconfig update"

	// KeyDNSStaticServers holds the space-separated static resolvers.
	KeyDNSStaticServers = "NETCONFIG_DNS_STATIC_SERVERS"

	// Loopback is the resolver a domain controller must query first.
	Loopback = "127.0.0.1"
)

// Store reads and writes single keys of a sysconfig file in place.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for the file at path.
func NewStore(fsys afero.Fs, path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value of key, or "" when the file or key is absent. A file
// that does not parse is an error: a partial parse would hide later keys.
func (s *Store) Get(key string) (string, error) {
	data, _, err := fsatomic.ReadFile(s.fs, s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	env, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return env[key], nil
}

// Set replaces every assignment of key, keeping every other line and comment.
// The key is appended when the file does not assign it yet.
func (s *Store) Set(key, value string) error {
	data, _, err := fsatomic.ReadFile(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	assignment := key + "=" + strconv.Quote(value)
	pattern := regexp.MustCompile(`^\s*(export\s+)?` + regexp.QuoteMeta(key) + `\s*=`)

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		if pattern.MatchString(line) {
			lines[i] = assignment
			replaced = true
		}
	}

	out := strings.Join(lines, "\n")
	if !replaced {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += assignment + "\n"
	}

	if err := fsatomic.WriteFile(s.fs, s.path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// EnsureLoopback returns list with 127.0.0.1 prepended when it is missing.
// A list that already contains it is returned unchanged.
func EnsureLoopback(list string) string {
	servers := strings.Fields(list)
	for _, server := range servers {
		if server == Loopback {
			return list
		}
	}
	return strings.Join(append([]string{Loopback}, servers...), " ")
}

// ResolverWriter registers the local resolver in the static DNS list.
type ResolverWriter struct {
	store  *Store
	logger logging.Logger
}

// NewResolverWriter creates a ResolverWriter over store.
func NewResolverWriter(store *Store, logger logging.Logger) *ResolverWriter {
	return &ResolverWriter{store: store, logger: logging.OrNop(logger)}
}

// Path returns the network configuration location.
func (w *ResolverWriter) Path() string {
	return w.store.Path()
}

// Write prepends 127.0.0.1 to the static resolver list and saves it.
func (w *ResolverWriter) Write(_ context.Context) error {
	current, err := w.store.Get(KeyDNSStaticServers)
	if err != nil {
		return err
	}

	updated := EnsureLoopback(current)

	w.logger.Debug("Updating static DNS servers", map[string]any{
		"path":    w.store.Path(),
		"current": current,
		"updated": updated,
	})

	return w.store.Set(KeyDNSStaticServers, updated)
}

// Reconfigurer applies the network configuration.
type Reconfigurer struct {
	command string
	runner  command.Runner
}

// NewReconfigurer creates a Reconfigurer running the given command line.
func NewReconfigurer(cmdline string, runner command.Runner) *Reconfigurer {
	if cmdline == "" {
		cmdline = DefaultReconfigureCommand
	}
	return &Reconfigurer{command: cmdline, runner: runner}
}

// Command returns the configured command line.
func (r *Reconfigurer) Command() string {
	return r.command
}

// Reconfigure runs the command.
func (r *Reconfigurer) Reconfigure(ctx context.Context) error {
	argv, err := shellquote.Split(r.command)
	if err != nil {
		return fmt.Errorf("invalid command %q: %w", r.command, err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("invalid command %q: empty", r.command)
	}

	out, err := r.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		if detail := strings.TrimSpace(out); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}
