// Package recorder writes timestamped sensor snapshots to CSV files with
// automatic rotation.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macduff/obdscan/internal/poll"
)

// Config holds recorder configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

// Rotate after 100k rows (~28 hrs at 1 Hz).
const maxRowsPerFile = 100_000

var csvHeader = []string{
	"timestamp", "page", "instant_hz", "average_hz", "device_connected",
	"sensor_index", "sensor_label", "sensor_value", "sensor_enabled",
}

// Recorder appends one row per sensor per snapshot, rate-limited by the
// configured interval.
type Recorder struct {
	mu       sync.Mutex
	log      zerolog.Logger
	dir      string
	interval time.Duration
	enabled  bool

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
}

// New creates a Recorder.
func New(cfg Config, log zerolog.Logger) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "/var/log/obdscan"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 100*time.Millisecond {
		interval = time.Second
	}
	return &Recorder{
		log:      log,
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
	}
}

// SetEnabled toggles recording at runtime.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on {
		r.closeFile()
	}
}

// Record writes a snapshot if the minimum interval has elapsed.
func (r *Recorder) Record(snap poll.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}
	now := time.Now()
	if now.Sub(r.lastTs) < r.interval {
		return
	}
	r.lastTs = now

	if r.writer == nil || r.rows >= maxRowsPerFile {
		if err := r.rotateFile(now); err != nil {
			r.log.Error().Err(err).Msg("recorder rotate failed")
			return
		}
	}

	ts := now.Format(time.RFC3339Nano)
	for _, s := range snap.Sensors {
		row := []string{
			ts,
			strconv.Itoa(snap.Page),
			fmt.Sprintf("%.2f", snap.InstantHz),
			fmt.Sprintf("%.2f", snap.AverageHz),
			boolStr(snap.DeviceConnected),
			strconv.Itoa(s.Index),
			s.Label,
			s.Value,
			boolStr(s.Enabled),
		}
		if err := r.writer.Write(row); err != nil {
			r.log.Error().Err(err).Msg("recorder write failed")
			return
		}
		r.rows++
	}
	r.writer.Flush()
}

// Close flushes and closes the current file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("obdscan_%s.csv", now.Format("2006-01-02_150405")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	r.log.Info().Str("path", path).Msg("recorder file opened")
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
