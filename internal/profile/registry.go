package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reprice/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// PolicyProfile holds the pricing policy parameters for one category.
// Zero fields inherit from the default profile.
type PolicyProfile struct {
	Name            string  `yaml:"-"`
	DemandK         float64 `yaml:"demand_k"`
	InventoryK      float64 `yaml:"inventory_k"`
	MinMargin       float64 `yaml:"min_margin"`
	MaxMarkup       float64 `yaml:"max_markup"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
}

// FileConfig maps the profiles file.
type FileConfig struct {
	Profiles map[string]PolicyProfile `yaml:"profiles"`
}

// Snapshot is the public profile set view.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]PolicyProfile
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// DefaultProfile is used when no file entry applies.
var DefaultProfile = PolicyProfile{
	Name:            "default",
	DemandK:         0.15,
	InventoryK:      0.05,
	MinMargin:       0.10,
	MaxMarkup:       3.0,
	ConfidenceFloor: 0.2,
}

// profileSchema validates every profile entry before it is trusted.
const profileSchema = `{
	"type": "object",
	"properties": {
		"demand_k":         {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"inventory_k":      {"type": "number", "minimum": 0, "maximum": 1},
		"min_margin":       {"type": "number", "minimum": 0, "maximum": 1},
		"max_markup":       {"type": "number", "exclusiveMinimum": 1},
		"confidence_floor": {"type": "number", "minimum": 0, "maximum": 1}
	},
	"additionalProperties": false
}`

var compiledProfileSchema = jsonschema.MustCompileString("profile.json", profileSchema)

// Registry manages per-category policy profiles, hot-reloaded on file
// change. Concurrent cycles read snapshots; only reload writes.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the profiles file and watches it for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("policy profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy profiles failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("policy profile reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// NewStaticRegistry builds a registry from in-memory profiles, without file
// watching. Used when no profiles file is configured, and by tests.
func NewStaticRegistry(profiles map[string]PolicyProfile) *Registry {
	r := &Registry{}
	normalized := make(map[string]PolicyProfile, len(profiles))
	for name, p := range profiles {
		normalized[strings.ToLower(strings.TrimSpace(name))] = normalizeProfile(name, p)
	}
	r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Profiles: normalized}
	return r
}

// Snapshot returns the current profile set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Resolve returns the profile for a category, falling back to the file's
// "default" entry and then to the built-in defaults.
func (r *Registry) Resolve(category string) PolicyProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(category))
	if p, ok := r.snapshot.Profiles[key]; ok {
		return p
	}
	if p, ok := r.snapshot.Profiles["default"]; ok {
		return p
	}
	return DefaultProfile
}

// OnChange registers a reload listener.
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
	profiles := make(map[string]PolicyProfile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("policy profile %q invalid: %w", name, err)
		}
		profiles[strings.ToLower(strings.TrimSpace(name))] = normalizeProfile(name, p)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("policy profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("policy profile listener")
			cb(snap)
		}(fn)
	}
}

func normalizeProfile(name string, p PolicyProfile) PolicyProfile {
	p.Name = strings.TrimSpace(name)
	if p.DemandK <= 0 {
		p.DemandK = DefaultProfile.DemandK
	}
	if p.InventoryK <= 0 {
		p.InventoryK = DefaultProfile.InventoryK
	}
	if p.MinMargin <= 0 {
		p.MinMargin = DefaultProfile.MinMargin
	}
	if p.MaxMarkup <= 1 {
		p.MaxMarkup = DefaultProfile.MaxMarkup
	}
	if p.ConfidenceFloor <= 0 {
		p.ConfidenceFloor = DefaultProfile.ConfidenceFloor
	}
	return p
}

func validateProfile(p PolicyProfile) error {
	raw, err := json.Marshal(map[string]any{
		"demand_k":         nonZeroOr(p.DemandK, DefaultProfile.DemandK),
		"inventory_k":      nonZeroOr(p.InventoryK, DefaultProfile.InventoryK),
		"min_margin":       nonZeroOr(p.MinMargin, DefaultProfile.MinMargin),
		"max_markup":       nonZeroOr(p.MaxMarkup, DefaultProfile.MaxMarkup),
		"confidence_floor": nonZeroOr(p.ConfidenceFloor, DefaultProfile.ConfidenceFloor),
	})
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return compiledProfileSchema.Validate(doc)
}

func nonZeroOr(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]PolicyProfile, len(src.Profiles)),
	}
	for name, p := range src.Profiles {
		dst.Profiles[name] = p
	}
	return dst
}

func readProfileFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read policy profiles failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse policy profiles failed: %w", err)
	}
	return cfg, nil
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
