// Package krb5conf generates the Kerberos client configuration of a freshly
// provisioned domain controller.
package krb5conf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/command"
	"github.com/isometry/terraform-provider-sambadc/internal/fsatomic"
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

const (
	// DefaultPath is the system Kerberos configuration.
	DefaultPath = "/etc/krb5.conf"
	// DefaultPAMConfig is the tool that manages the PAM Kerberos module.
	DefaultPAMConfig = "/usr/sbin/pam-config"

	defaultTicketLifetime = 24 * time.Hour
	defaultRenewLifetime  = 7 * 24 * time.Hour
)

// Settings is the Kerberos client configuration derived from a realm.
type Settings struct {
	DefaultRealm   string
	DefaultDomain  string
	KDC            []string // empty: KDCs are located through DNS
	TrustedServers []string // written as admin_server entries
	DNSLookup      bool
	PAMLogin       bool
}

// FromRealm returns the settings for a domain controller of realm.
func FromRealm(realm string) Settings {
	return Settings{
		DefaultRealm:   strings.ToUpper(realm),
		DefaultDomain:  strings.ToLower(realm),
		KDC:            []string{},
		TrustedServers: []string{},
		DNSLookup:      true,
		PAMLogin:       false,
	}
}

// Writer persists Settings to krb5.conf.
type Writer struct {
	fs        afero.Fs
	path      string
	pamConfig string
	runner    command.Runner
	lookPath  func(string) (string, error)
	logger    logging.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithPAMConfig sets the pam-config command. An empty command disables the
// PAM update.
func WithPAMConfig(cmd string) Option {
	return func(w *Writer) { w.pamConfig = cmd }
}

// WithLookPath replaces exec.LookPath when checking for pam-config.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(w *Writer) { w.lookPath = fn }
}

// NewWriter creates a Writer for the krb5.conf at path.
func NewWriter(fsys afero.Fs, path string, runner command.Runner, logger logging.Logger, opts ...Option) *Writer {
	if path == "" {
		path = DefaultPath
	}
	w := &Writer{
		fs:        fsys,
		path:      path,
		pamConfig: DefaultPAMConfig,
		runner:    runner,
		lookPath:  exec.LookPath,
		logger:    logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the krb5.conf location.
func (w *Writer) Path() string {
	return w.path
}

// Write merges s into the existing krb5.conf, validates and saves the
// result, then applies the PAM login setting.
func (w *Writer) Write(ctx context.Context, s Settings) error {
	if s.DefaultRealm == "" {
		return errors.New("default realm is empty: realm is not configured")
	}

	existing, err := w.load()
	if err != nil {
		return err
	}

	rendered := Render(s, existing)

	parsed, err := parse(rendered)
	if err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}
	if parsed.LibDefaults.DefaultRealm != s.DefaultRealm {
		return fmt.Errorf("generated configuration has default realm %q, expected %q",
			parsed.LibDefaults.DefaultRealm, s.DefaultRealm)
	}

	if err := fsatomic.WriteFile(w.fs, w.path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}

	w.logger.Info("Wrote Kerberos configuration", map[string]any{
		"path":          w.path,
		"default_realm": s.DefaultRealm,
		"realms":        len(parsed.Realms),
	})

	if !s.PAMLogin {
		return w.disablePAMKerberos(ctx)
	}
	return nil
}

// load returns the current krb5.conf text. A missing or unparsable file
// yields "": there is nothing to carry over.
func (w *Writer) load() (string, error) {
	data, exists, err := fsatomic.ReadFile(w.fs, w.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	if !exists {
		return "", nil
	}

	if _, err := parse(string(data)); err != nil {
		w.logger.Warn("Ignoring unparsable Kerberos configuration", map[string]any{
			"path":  w.path,
			"error": err.Error(),
		})
		return "", nil
	}
	return string(data), nil
}

func (w *Writer) disablePAMKerberos(ctx context.Context) error {
	if w.pamConfig == "" {
		return nil
	}
	if _, err := w.lookPath(w.pamConfig); err != nil {
		w.logger.Debug("pam-config not available, skipping PAM Kerberos update", map[string]any{
			"command": w.pamConfig,
		})
		return nil
	}

	if _, err := w.runner.Run(ctx, w.pamConfig, "--delete", "--krb5"); err != nil {
		return fmt.Errorf("failed to disable PAM Kerberos login: %w", err)
	}
	return nil
}

// parse accepts configurations that only contain unsupported directives.
func parse(s string) (*config.Config, error) {
	cfg, err := config.NewFromString(s)
	if err != nil {
		var unsupported config.UnsupportedDirective
		if errors.As(err, &unsupported) && cfg != nil {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// Render edits the krb5.conf text existing for s. The default realm, the DNS
// lookup flags, the realm block and its domain mappings are replaced; other
// lines, include directives and sections are kept as written. Ticket
// lifetimes are only added when existing does not set them.
func Render(s Settings, existing string) string {
	sections := splitSections(existing)

	libdefaults := sectionNamed(&sections, "libdefaults")
	libdefaults.set(map[string]string{
		"default_realm":    s.DefaultRealm,
		"dns_lookup_kdc":   strconv.FormatBool(s.DNSLookup),
		"dns_lookup_realm": strconv.FormatBool(s.DNSLookup),
	}, true)
	libdefaults.set(map[string]string{
		"ticket_lifetime": formatDuration(defaultTicketLifetime),
		"renew_lifetime":  formatDuration(defaultRenewLifetime),
		"forwardable":     "true",
		"rdns":            "false",
	}, false)

	realms := sectionNamed(&sections, "realms")
	realms.lines = append(realmBlock(s), dropRealm(realms.lines, s.DefaultRealm)...)

	domainRealm := sectionNamed(&sections, "domain_realm")
	if s.DefaultDomain != "" {
		domain := strings.ToLower(s.DefaultDomain)
		domainRealm.drop("."+domain, domain)
		domainRealm.insert(
			fmt.Sprintf("\t.%s = %s", domain, s.DefaultRealm),
			fmt.Sprintf("\t%s = %s", domain, s.DefaultRealm),
		)
	}

	var b strings.Builder
	for _, sec := range sections {
		if sec.header != "" {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n\n") {
				b.WriteString("\n")
			}
			b.WriteString(sec.header + "\n")
		}
		for _, line := range sec.lines {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// section is one bracketed part of krb5.conf. The lines ahead of the first
// header, such as includedir directives, form a section without header.
type section struct {
	name   string
	header string
	lines  []string
}

func splitSections(text string) []*section {
	sections := []*section{{}}
	if text == "" {
		return sections
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if name, ok := sectionHeader(line); ok {
			sections = append(sections, &section{name: name, header: strings.TrimSpace(line)})
			continue
		}
		last := sections[len(sections)-1]
		last.lines = append(last.lines, line)
	}
	return sections
}

func sectionHeader(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if len(t) < 2 || t[0] != '[' || t[len(t)-1] != ']' {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(t[1 : len(t)-1])), true
}

// sectionNamed returns the first section called name, appending an empty
// one when the file has none.
func sectionNamed(sections *[]*section, name string) *section {
	for _, sec := range *sections {
		if sec.name == name {
			return sec
		}
	}
	sec := &section{name: name, header: "[" + name + "]"}
	*sections = append(*sections, sec)
	return sec
}

// set assigns values to their keys. Existing assignments are rewritten only
// when replace is true; later duplicates of a rewritten key are removed.
// Keys the section lacks are added after its last entry.
func (sec *section) set(values map[string]string, replace bool) {
	seen := map[string]bool{}
	kept := sec.lines[:0:0]
	for _, line := range sec.lines {
		key := lineKey(line)
		value, managed := values[key]
		switch {
		case !managed:
			kept = append(kept, line)
		case seen[key] && replace:
		case replace:
			kept = append(kept, fmt.Sprintf("\t%s = %s", key, value))
		default:
			kept = append(kept, line)
		}
		if managed {
			seen[key] = true
		}
	}
	sec.lines = kept

	keys := make([]string, 0, len(values))
	for key := range values {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	added := make([]string, 0, len(keys))
	for _, key := range keys {
		added = append(added, fmt.Sprintf("\t%s = %s", key, values[key]))
	}
	sec.insert(added...)
}

// drop removes the assignments of keys.
func (sec *section) drop(keys ...string) {
	sec.lines = slices.DeleteFunc(sec.lines, func(line string) bool {
		return slices.Contains(keys, lineKey(line))
	})
}

// insert adds lines after the last non-blank line, ahead of the blank lines
// separating the section from the next one.
func (sec *section) insert(lines ...string) {
	at := len(sec.lines)
	for at > 0 && strings.TrimSpace(sec.lines[at-1]) == "" {
		at--
	}
	sec.lines = slices.Insert(sec.lines, at, lines...)
}

// lineKey returns the lower-cased key of a "key = value" line, or "" for
// comments, blank lines and block delimiters.
func lineKey(line string) string {
	t := strings.TrimSpace(line)
	if t == "" || t[0] == '#' || t[0] == ';' {
		return ""
	}
	key, _, ok := strings.Cut(t, "=")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(key))
}

func realmBlock(s Settings) []string {
	lines := []string{fmt.Sprintf("\t%s = {", s.DefaultRealm)}
	if s.DefaultDomain != "" {
		lines = append(lines, "\t\tdefault_domain = "+s.DefaultDomain)
	}
	for _, kdc := range s.KDC {
		lines = append(lines, "\t\tkdc = "+kdc)
	}
	for _, server := range s.TrustedServers {
		lines = append(lines, "\t\tadmin_server = "+server)
	}
	return append(lines, "\t}")
}

// dropRealm removes the block of realm from the lines of a [realms] section.
func dropRealm(lines []string, realm string) []string {
	kept := make([]string, 0, len(lines))
	depth := 0
	skipping := false
	for _, line := range lines {
		t := line
		if idx := strings.IndexAny(t, "#;"); idx != -1 {
			t = t[:idx]
		}
		if depth == 0 && strings.Contains(t, "{") {
			name, _, _ := strings.Cut(t, "=")
			skipping = strings.EqualFold(strings.TrimSpace(name), realm)
		}
		depth += strings.Count(t, "{") - strings.Count(t, "}")
		if depth < 0 {
			depth = 0
		}
		if !skipping {
			kept = append(kept, line)
		}
		if depth == 0 {
			skipping = false
		}
	}
	return kept
}

// formatDuration renders d in the largest whole krb5 unit.
func formatDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%d", d/time.Second)
	}
}
