package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jaupesca/remarketing-gateway/internal/events"
	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// Remote is one gateway deployment and the defaults rmk applies to it.
type Remote struct {
	URL     string `toml:"url" json:"url"`
	NATSURL string `toml:"nats_url,omitempty" json:"natsUrl,omitempty"`
	// Channel is the flow `rmk broadcast` replaces when --type is not given.
	Channel model.Channel `toml:"channel,omitempty" json:"channel,omitempty"`
	// Watch lists the event kinds `rmk watch` shows when --only is not given.
	Watch []string `toml:"watch,omitempty" json:"watch,omitempty"`
}

// validate checks the URLs and watch kinds and normalizes Channel.
func (r *Remote) validate() error {
	if err := checkURL(r.URL, "http", "https"); err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if r.NATSURL != "" {
		if err := checkURL(r.NATSURL, "nats", "tls"); err != nil {
			return fmt.Errorf("nats url: %w", err)
		}
	}
	if r.Channel != "" {
		ch, err := model.ParseChannel(string(r.Channel))
		if err != nil {
			return err
		}
		r.Channel = ch
	}
	if _, err := events.TopicsFor(r.Watch); err != nil {
		return err
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %s URL", raw, schemes[0])
}

// remoteProfiles is the on-disk set of remotes.
type remoteProfiles struct {
	Active  string            `toml:"active" json:"active"`
	Remotes map[string]Remote `toml:"remotes" json:"remotes"`
}

// remotesPath is $XDG_STATE_HOME/rmk/remotes.toml, falling back to
// ~/.local/state/rmk/remotes.toml.
func remotesPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "rmk", "remotes.toml"), nil
}

func loadProfiles() (*remoteProfiles, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	p := &remoteProfiles{}
	if _, err := toml.DecodeFile(path, p); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if p.Remotes == nil {
		p.Remotes = map[string]Remote{}
	}
	return p, nil
}

// save replaces the file atomically; it is only ever readable by the owner.
func (p *remoteProfiles) save() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (p *remoteProfiles) get(name string) (Remote, error) {
	r, ok := p.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found (see 'rmk remote list')", name)
	}
	return r, nil
}

func (p *remoteProfiles) names() []string {
	names := make([]string, 0, len(p.Remotes))
	for name := range p.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// activeRemote returns the active profile, read once per process. Unreadable
// files and a missing active entry yield the zero Remote.
var activeRemote = sync.OnceValue(func() Remote {
	p, err := loadProfiles()
	if err != nil || p.Active == "" {
		return Remote{}
	}
	return p.Remotes[p.Active]
})
