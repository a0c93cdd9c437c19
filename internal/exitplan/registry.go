package exitplan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fnotrader/internal/logger"
	"fnotrader/internal/strategy/exit"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Profile is a named, ordered set of exit rules.
type Profile struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Rules       []exit.RuleSpec `yaml:"rules" json:"rules"`
}

// FileConfig maps the exit_profiles file.
type FileConfig struct {
	ExitProfiles map[string]Profile `yaml:"exit_profiles"`
}

// Snapshot is an immutable view of the loaded profiles.
type Snapshot struct {
	Version  int64              `json:"version"`
	LoadedAt time.Time          `json:"loaded_at"`
	Profiles map[string]Profile `json:"profiles"`
}

// Names returns the profile names sorted.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.Profiles))
	for name := range s.Profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads exit profiles and reloads them when the file changes.
// A reload that fails validation keeps the previous snapshot.
type Registry struct {
	path     string
	handlers *exit.HandlerRegistry
	v        *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads path, validates every rule and starts watching the file.
func NewRegistry(path string, handlers *exit.HandlerRegistry) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("exit profile registry requires path")
	}
	if handlers == nil {
		return nil, fmt.Errorf("exit profile registry requires handlers")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read exit profile config failed: %w", err)
	}
	r := &Registry{path: path, handlers: handlers, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("exit profile reload failed (%s): %v", evt.Name, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current profile set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Profile returns the named profile.
func (r *Registry) Profile(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(name)]
	return p, ok
}

// Chain builds fresh rules for the named profile.
func (r *Registry) Chain(name string) (*exit.Chain, error) {
	p, ok := r.Profile(name)
	if !ok {
		return nil, fmt.Errorf("unknown exit profile: %s", name)
	}
	return r.handlers.BuildChain(p.Rules)
}

// OnChange registers a listener called after each successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readProfileFile(r.path)
	if err != nil {
		return err
	}
	profiles := make(map[string]Profile, len(cfg.ExitProfiles))
	for name, p := range cfg.ExitProfiles {
		norm := normalizeProfile(name, p)
		if len(norm.Rules) == 0 {
			return fmt.Errorf("exit profile %s has no rules", norm.Name)
		}
		for i, spec := range norm.Rules {
			if err := r.handlers.Validate(spec); err != nil {
				return fmt.Errorf("exit profile %s rule %d: %w", norm.Name, i, err)
			}
		}
		profiles[norm.Name] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("Exit profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("exit profile listener")
			cb(snap)
		}(fn)
	}
}

func normalizeProfile(name string, p Profile) Profile {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = strings.TrimSpace(name)
	}
	p.Description = strings.TrimSpace(p.Description)
	rules := make([]exit.RuleSpec, 0, len(p.Rules))
	for _, spec := range p.Rules {
		spec.Handler = strings.TrimSpace(spec.Handler)
		spec.Params = exit.SanitizeParams(spec.Params)
		rules = append(rules, spec)
	}
	p.Rules = rules
	return p
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for name, p := range src.Profiles {
		dst.Profiles[name] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func readProfileFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read exit profile config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse exit profile config failed: %w", err)
	}
	return cfg, nil
}
