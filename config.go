package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

// ─── Config ──────────────────────────────────────────────────────────────────

const (
	fitPage    = "fit_page"
	fitWidth   = "fit_width"
	fitHeight  = "fit_height"
	actualSize = "actual_size"

	wheelNavigate = "navigate"
	wheelZoom     = "zoom"

	sortByName     = "name"
	sortByModified = "modified"
	sortByCreated  = "created"
)

var fitModes = []string{fitPage, fitWidth, fitHeight, actualSize}

// config is the resolved, read-only snapshot handed to the rest of the
// program. It is never mutated after loadConfigFile returns it.
type config struct {
	Path             string        // file the snapshot was read from
	FolderPath       string
	ExtraFoldersGlob string
	Recursive        bool
	SortOrder        string
	Shuffle          bool
	ShufflePages     bool          // random page order within each notice
	CycleInterval    time.Duration
	IdleTimeout      time.Duration // 0 disables the idle overlay
	IdlePausesRotate bool
	IdleOverlayText  string
	ShowDate         bool
	FontSizes        map[string]float64
	Colors           map[string]string
	MinZoom          float64
	MaxZoom          float64
	ZoomStep         float64
	PanStep          float64
	FitMode          string
	WheelMode        string
	ThumbnailsCount  int
	PageIndicator    string
	LogoPath         string        // image file or folder holding one, "" for none
	MaxLogoHeight    int
	LogPath          string
}

// configFile mirrors the on-disk document. Pointers distinguish "missing"
// from "zero". Legacy keys from older kiosk configs are read when the
// canonical key is absent.
type configFile struct {
	FolderPath         *string            `json:"folder_path,omitempty" yaml:"folder_path,omitempty"`
	CycleInterval      *float64           `json:"cycle_interval_seconds,omitempty" yaml:"cycle_interval_seconds,omitempty"`
	IdleTimeout        *float64           `json:"idle_timeout_seconds,omitempty" yaml:"idle_timeout_seconds,omitempty"`
	ShowDate           *bool              `json:"show_date,omitempty" yaml:"show_date,omitempty"`
	FontSizes          map[string]float64 `json:"font_sizes,omitempty" yaml:"font_sizes,omitempty"`
	Colors             map[string]string  `json:"colors,omitempty" yaml:"colors,omitempty"`
	ExtraFoldersGlob   *string            `json:"extra_folders_glob,omitempty" yaml:"extra_folders_glob,omitempty"`
	Recursive          *bool              `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	SortOrder          *string            `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
	Shuffle            *bool              `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	MinZoom            *float64           `json:"min_zoom,omitempty" yaml:"min_zoom,omitempty"`
	MaxZoom            *float64           `json:"max_zoom,omitempty" yaml:"max_zoom,omitempty"`
	ZoomStep           *float64           `json:"zoom_step,omitempty" yaml:"zoom_step,omitempty"`
	PanStep            *float64           `json:"pan_step,omitempty" yaml:"pan_step,omitempty"`
	FitMode            *string            `json:"fit_mode,omitempty" yaml:"fit_mode,omitempty"`
	WheelMode          *string            `json:"wheel_mode,omitempty" yaml:"wheel_mode,omitempty"`
	IdleOverlayText    *string            `json:"idle_overlay_text,omitempty" yaml:"idle_overlay_text,omitempty"`
	IdlePausesRotation *bool              `json:"idle_pauses_rotation,omitempty" yaml:"idle_pauses_rotation,omitempty"`
	ThumbnailsCount    *int               `json:"thumbnails_count,omitempty" yaml:"thumbnails_count,omitempty"`
	PageIndicator      *string            `json:"page_indicator,omitempty" yaml:"page_indicator,omitempty"`
	ShufflePages       *bool              `json:"shuffle_pages,omitempty" yaml:"shuffle_pages,omitempty"`
	LogoPath           *string            `json:"logo_path,omitempty" yaml:"logo_path,omitempty"`
	MaxLogoHeight      *int               `json:"max_logo_height,omitempty" yaml:"max_logo_height,omitempty"`
	LogPath            *string            `json:"log_path,omitempty" yaml:"log_path,omitempty"`

	// Legacy keys
	PDFDir           *string  `json:"pdf_dir,omitempty" yaml:"pdf_dir,omitempty"`
	LegacyCycle      *float64 `json:"cycle_interval,omitempty" yaml:"cycle_interval,omitempty"`
	LegacyIdle       *float64 `json:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty"`
	LegacyShuffle    *bool    `json:"shuffle_files,omitempty" yaml:"shuffle_files,omitempty"`
	LegacyBackground *string  `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	LegacyHighlight  *string  `json:"highlight_color,omitempty" yaml:"highlight_color,omitempty"`
	LegacyIdleColor  *string  `json:"idle_overlay_color,omitempty" yaml:"idle_overlay_color,omitempty"`
	LegacyClockSize  *float64 `json:"clock_font_size,omitempty" yaml:"clock_font_size,omitempty"`
}

func defaultColors() map[string]string {
	return map[string]string{
		"background":   "#FFFFFF",
		"foreground":   "#1A1A1A",
		"highlight":    "#0077CC",
		"accent":       "#AA44AA",
		"idle_overlay": "#000000",
	}
}

func defaultFontSizes() map[string]float64 {
	return map[string]float64{
		"clock": 18,
		"title": 24,
	}
}

// newDefaultConfig returns a fresh default snapshot. Must be a function (not
// a var) because the maps would otherwise be shared between snapshots.
func newDefaultConfig() *config {
	return &config{
		FolderPath:       "notices",
		Recursive:        true,
		SortOrder:        sortByName,
		CycleInterval:    10 * time.Second,
		IdlePausesRotate: true,
		IdleOverlayText:  "Idle",
		ShowDate:         true,
		FontSizes:        defaultFontSizes(),
		Colors:           defaultColors(),
		MinZoom:          0.1,
		MaxZoom:          8.0,
		ZoomStep:         0.1,
		PanStep:          50,
		FitMode:          fitPage,
		WheelMode:        wheelNavigate,
		ThumbnailsCount:  4,
		PageIndicator:    "top-right",
		MaxLogoHeight:    100,
	}
}

func configPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(cfgDir, "digiboard", "config.json"), nil
}

// expandHome expands a leading "~/" to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// contractHome replaces the user's home directory prefix with "~/" for display.
func contractHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~/" + rel
	}
	return path
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFile reads and validates the config at path. A missing file
// yields defaults; anything else wrong is a *ConfigError.
func loadConfigFile(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := newDefaultConfig()
			cfg.Path = path
			resolvePaths(cfg, filepath.Dir(path))
			return cfg, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	return parseConfig(path, data)
}

// parseConfig decodes data and resolves it over the defaults.
func parseConfig(path string, data []byte) (*config, error) {
	var raw configFile
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	} else {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, &ConfigError{Path: path, Err: errors.New("empty document")}
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return nil, &ConfigError{Path: path, Key: typeErr.Field, Err: fmt.Errorf("expected %s, got %s", typeErr.Type, typeErr.Value)}
			}
			return nil, &ConfigError{Path: path, Err: err}
		}
	}
	cfg, err := raw.resolve()
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	cfg.Path = path
	resolvePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// resolvePaths makes folder and log paths absolute relative to base.
func resolvePaths(cfg *config, base string) {
	cfg.FolderPath = expandHome(cfg.FolderPath)
	if !filepath.IsAbs(cfg.FolderPath) {
		cfg.FolderPath = filepath.Join(base, cfg.FolderPath)
	}
	cfg.ExtraFoldersGlob = expandHome(cfg.ExtraFoldersGlob)
	if cfg.LogoPath != "" {
		cfg.LogoPath = expandHome(cfg.LogoPath)
		if !filepath.IsAbs(cfg.LogoPath) {
			cfg.LogoPath = filepath.Join(base, cfg.LogoPath)
		}
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(base, "digiboard.log")
	}
	cfg.LogPath = expandHome(cfg.LogPath)
	if !filepath.IsAbs(cfg.LogPath) {
		cfg.LogPath = filepath.Join(base, cfg.LogPath)
	}
}

func invalid(key string, format string, args ...any) error {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// normalizeColor returns the colour in a form lipgloss understands: #RGB,
// #RRGGBB or an ANSI palette index. Named colours such as "blue" or
// "light gray" (as Tk configs write them) become #RRGGBB.
func normalizeColor(s string) (string, bool) {
	if hexColor.MatchString(s) {
		return s, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return s, n >= 0 && n <= 255
	}
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if c, ok := colornames.Map[name]; ok {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B), true
	}
	return "", false
}

// finite rejects the NaN and infinities YAML can spell (.nan, .inf).
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (raw configFile) resolve() (*config, error) {
	cfg := newDefaultConfig()

	// Backward compat: older configs used pdf_dir, cycle_interval, idle_timeout
	folder := raw.FolderPath
	if folder == nil {
		folder = raw.PDFDir
	}
	if folder == nil || strings.TrimSpace(*folder) == "" {
		return nil, invalid("folder_path", "required option is missing")
	}
	cfg.FolderPath = strings.TrimSpace(*folder)

	cycle := raw.CycleInterval
	if cycle == nil {
		cycle = raw.LegacyCycle
	}
	if cycle != nil {
		if !finite(*cycle) || *cycle <= 0 {
			return nil, invalid("cycle_interval_seconds", "must be > 0, got %v", *cycle)
		}
		cfg.CycleInterval = seconds(*cycle)
	}

	idle := raw.IdleTimeout
	if idle == nil {
		idle = raw.LegacyIdle
	}
	if idle != nil {
		if !finite(*idle) || *idle < 0 {
			return nil, invalid("idle_timeout_seconds", "must be >= 0, got %v", *idle)
		}
		cfg.IdleTimeout = seconds(*idle)
	}

	if raw.ShowDate != nil {
		cfg.ShowDate = *raw.ShowDate
	}
	if raw.Recursive != nil {
		cfg.Recursive = *raw.Recursive
	}
	if raw.ExtraFoldersGlob != nil {
		cfg.ExtraFoldersGlob = strings.TrimSpace(*raw.ExtraFoldersGlob)
	}
	switch {
	case raw.Shuffle != nil:
		cfg.Shuffle = *raw.Shuffle
	case raw.LegacyShuffle != nil:
		cfg.Shuffle = *raw.LegacyShuffle
	}
	if raw.ShufflePages != nil {
		cfg.ShufflePages = *raw.ShufflePages
	}
	if raw.LogoPath != nil {
		cfg.LogoPath = strings.TrimSpace(*raw.LogoPath)
	}
	if raw.MaxLogoHeight != nil {
		if *raw.MaxLogoHeight <= 0 {
			return nil, invalid("max_logo_height", "must be > 0, got %d", *raw.MaxLogoHeight)
		}
		cfg.MaxLogoHeight = *raw.MaxLogoHeight
	}
	if raw.IdlePausesRotation != nil {
		cfg.IdlePausesRotate = *raw.IdlePausesRotation
	}
	if raw.IdleOverlayText != nil {
		cfg.IdleOverlayText = *raw.IdleOverlayText
	}
	if raw.LogPath != nil {
		cfg.LogPath = strings.TrimSpace(*raw.LogPath)
	}

	if raw.SortOrder != nil {
		if !oneOf(*raw.SortOrder, sortByName, sortByModified, sortByCreated) {
			return nil, invalid("sort_order", "unknown order %q", *raw.SortOrder)
		}
		cfg.SortOrder = *raw.SortOrder
	}
	if raw.FitMode != nil {
		if !oneOf(*raw.FitMode, fitModes...) {
			return nil, invalid("fit_mode", "unknown mode %q", *raw.FitMode)
		}
		cfg.FitMode = *raw.FitMode
	}
	if raw.WheelMode != nil {
		if !oneOf(*raw.WheelMode, wheelNavigate, wheelZoom) {
			return nil, invalid("wheel_mode", "unknown mode %q", *raw.WheelMode)
		}
		cfg.WheelMode = *raw.WheelMode
	}
	if raw.PageIndicator != nil {
		if !oneOf(*raw.PageIndicator, "top-right", "bottom-right") {
			return nil, invalid("page_indicator", "unknown position %q", *raw.PageIndicator)
		}
		cfg.PageIndicator = *raw.PageIndicator
	}

	if raw.MinZoom != nil {
		cfg.MinZoom = *raw.MinZoom
	}
	if raw.MaxZoom != nil {
		cfg.MaxZoom = *raw.MaxZoom
	}
	if !finite(cfg.MinZoom) || cfg.MinZoom <= 0 || cfg.MinZoom > 1 {
		return nil, invalid("min_zoom", "must be in (0, 1], got %v", cfg.MinZoom)
	}
	if !finite(cfg.MaxZoom) || cfg.MaxZoom < 1 {
		return nil, invalid("max_zoom", "must be >= 1, got %v", cfg.MaxZoom)
	}
	if raw.ZoomStep != nil {
		if !finite(*raw.ZoomStep) || *raw.ZoomStep <= 0 {
			return nil, invalid("zoom_step", "must be > 0, got %v", *raw.ZoomStep)
		}
		cfg.ZoomStep = *raw.ZoomStep
	}
	if raw.PanStep != nil {
		if !finite(*raw.PanStep) || *raw.PanStep <= 0 {
			return nil, invalid("pan_step", "must be > 0, got %v", *raw.PanStep)
		}
		cfg.PanStep = *raw.PanStep
	}
	if raw.ThumbnailsCount != nil {
		if *raw.ThumbnailsCount < 0 {
			return nil, invalid("thumbnails_count", "must be >= 0, got %d", *raw.ThumbnailsCount)
		}
		cfg.ThumbnailsCount = *raw.ThumbnailsCount
	}

	// Legacy flat colour and font keys fill in before the maps override them.
	for key, v := range map[string]*string{
		"background":   raw.LegacyBackground,
		"highlight":    raw.LegacyHighlight,
		"idle_overlay": raw.LegacyIdleColor,
	} {
		if v != nil {
			cfg.Colors[key] = *v
		}
	}
	if raw.LegacyClockSize != nil {
		cfg.FontSizes["clock"] = *raw.LegacyClockSize
	}
	for k, v := range raw.Colors {
		cfg.Colors[k] = v
	}
	for k, v := range cfg.Colors {
		c, ok := normalizeColor(v)
		if !ok {
			return nil, invalid("colors."+k, "invalid colour %q", v)
		}
		cfg.Colors[k] = c
	}
	for k, v := range raw.FontSizes {
		if !finite(v) || v <= 0 {
			return nil, invalid("font_sizes."+k, "must be > 0, got %v", v)
		}
		cfg.FontSizes[k] = v
	}
	return cfg, nil
}

// toFile converts a snapshot back to its canonical on-disk form.
func (c *config) toFile() configFile {
	folder := c.FolderPath
	if c.Path != "" {
		if rel, err := filepath.Rel(filepath.Dir(c.Path), folder); err == nil && !strings.HasPrefix(rel, "..") {
			folder = rel
		}
	}
	cycle := c.CycleInterval.Seconds()
	idle := c.IdleTimeout.Seconds()
	f := configFile{
		FolderPath:         &folder,
		CycleInterval:      &cycle,
		IdleTimeout:        &idle,
		ShowDate:           &c.ShowDate,
		FontSizes:          c.FontSizes,
		Colors:             c.Colors,
		Recursive:          &c.Recursive,
		SortOrder:          &c.SortOrder,
		Shuffle:            &c.Shuffle,
		MinZoom:            &c.MinZoom,
		MaxZoom:            &c.MaxZoom,
		ZoomStep:           &c.ZoomStep,
		PanStep:            &c.PanStep,
		FitMode:            &c.FitMode,
		WheelMode:          &c.WheelMode,
		IdleOverlayText:    &c.IdleOverlayText,
		IdlePausesRotation: &c.IdlePausesRotate,
		ThumbnailsCount:    &c.ThumbnailsCount,
		PageIndicator:      &c.PageIndicator,
		ShufflePages:       &c.ShufflePages,
		MaxLogoHeight:      &c.MaxLogoHeight,
	}
	if c.LogoPath != "" {
		f.LogoPath = &c.LogoPath
	}
	if c.ExtraFoldersGlob != "" {
		f.ExtraFoldersGlob = &c.ExtraFoldersGlob
	}
	if c.Path != "" && c.LogPath != filepath.Join(filepath.Dir(c.Path), "digiboard.log") {
		f.LogPath = &c.LogPath
	}
	return f
}

func saveConfig(path string, cfg *config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = yaml.Marshal(cfg.toFile())
	} else {
		data, err = json.MarshalIndent(cfg.toFile(), "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	// Atomic write: write to temp file then rename, so a crash mid-write
	// can't leave a truncated config that aborts the next startup.
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// ─── configStore ─────────────────────────────────────────────────────────────

// configStore holds the current snapshot. Reload swaps the whole pointer so
// readers never observe a half-applied config.
type configStore struct {
	path string
	snap atomic.Pointer[config]
}

func openConfigStore(path string) (*configStore, error) {
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	s := &configStore{path: path}
	s.snap.Store(cfg)
	return s, nil
}

// newConfigStore wraps an in-memory snapshot (tests, demo mode).
func newConfigStore(cfg *config) *configStore {
	s := &configStore{path: cfg.Path}
	s.snap.Store(cfg)
	return s
}

func (s *configStore) Path() string { return s.path }

func (s *configStore) Snapshot() *config { return s.snap.Load() }

// Reload re-reads the file. On error the previous snapshot stays current.
func (s *configStore) Reload() (*config, error) {
	cfg, err := loadConfigFile(s.path)
	if err != nil {
		return s.snap.Load(), err
	}
	s.snap.Store(cfg)
	return cfg, nil
}
