package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
)

// record is the on-disk form of one channel's checkpoint
type record struct {
	Fanclub  string  `json:"fanclub"`
	Username string  `json:"username"`
	UserID   int64   `json:"user_id"`
	Price    int     `json:"price"`
	Update   *string `json:"update"`
}

// Store persists checkpoints for every channel in a single JSON file.
// Save replaces the whole file; callers read-modify-write the full map.
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store backed by path, or by DefaultPath when path is empty
func NewStore(path string, log logger.Logger) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{path: path, logger: log}, nil
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// Load reads every checkpoint. A missing file yields an empty map.
func (s *Store) Load() (map[int64]models.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[int64]models.Checkpoint), nil
		}
		return nil, errs.Filesystem(err, "read checkpoint file %s", s.path)
	}

	checkpoints, err := decode(data)
	if err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("Checkpoints loaded", map[string]interface{}{
		"path":     s.path,
		"channels": len(checkpoints),
	})
	return checkpoints, nil
}

// Save replaces the checkpoint file atomically with the given map
func (s *Store) Save(checkpoints map[int64]models.Checkpoint) error {
	data, err := encode(checkpoints)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errs.Filesystem(err, "create checkpoint directory")
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errs.Filesystem(err, "create temporary checkpoint file")
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Filesystem(err, "write checkpoint file")
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Filesystem(err, "sync checkpoint file")
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errs.Filesystem(err, "close checkpoint file")
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errs.Filesystem(err, "replace checkpoint file")
	}

	s.logger.DebugWithFields("Checkpoints saved", map[string]interface{}{
		"path":     s.path,
		"channels": len(checkpoints),
	})
	return nil
}

// Backup copies the current checkpoint file to <path>.backup
func (s *Store) Backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Filesystem(err, "open checkpoint for backup")
	}
	defer src.Close()

	dst, err := os.Create(s.path + ".backup")
	if err != nil {
		return errs.Filesystem(err, "create backup file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errs.Filesystem(err, "copy checkpoint to backup")
	}

	s.logger.Debug("Checkpoint backed up")
	return nil
}

// Reset removes one channel's checkpoint so its next sync starts from scratch.
// It reports whether an entry existed.
func (s *Store) Reset(channelID int64) (bool, error) {
	checkpoints, err := s.Load()
	if err != nil {
		return false, err
	}
	if _, ok := checkpoints[channelID]; !ok {
		return false, nil
	}
	delete(checkpoints, channelID)
	return true, s.Save(checkpoints)
}

// Get returns the stored checkpoint for id or the zero default
func Get(checkpoints map[int64]models.Checkpoint, id int64) models.Checkpoint {
	return checkpoints[id]
}

// Invalidate applies the freshly observed price. A price increase may unlock
// content on posts already seen, so it clears LastSynced to force a full
// resync. The returned checkpoint always carries the new price.
func Invalidate(cp models.Checkpoint, observedPrice int) models.Checkpoint {
	if observedPrice > cp.Price {
		cp.LastSynced = nil
	}
	cp.Price = observedPrice
	return cp
}

// Advance moves LastSynced forward to t, truncated to the minute. It never
// moves backwards.
func Advance(cp models.Checkpoint, t time.Time) models.Checkpoint {
	t = t.UTC().Truncate(time.Minute)
	if cp.LastSynced != nil && !t.After(*cp.LastSynced) {
		return cp
	}
	cp.LastSynced = &t
	return cp
}

func decode(data []byte) (map[int64]models.Checkpoint, error) {
	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode checkpoint file")
	}

	checkpoints := make(map[int64]models.Checkpoint, len(raw))
	for key, rec := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "checkpoint key %q", key)
		}

		cp := models.Checkpoint{
			Fanclub:  rec.Fanclub,
			Username: rec.Username,
			UserID:   rec.UserID,
			Price:    rec.Price,
		}
		if rec.Update != nil && *rec.Update != "" {
			t, err := models.ParseTimestamp(*rec.Update)
			if err != nil {
				return nil, errs.Wrap(errs.ErrorTypeParsing, err, "checkpoint %d update time", id)
			}
			cp.LastSynced = &t
		}
		checkpoints[id] = cp
	}
	return checkpoints, nil
}

func encode(checkpoints map[int64]models.Checkpoint) ([]byte, error) {
	raw := make(map[string]record, len(checkpoints))
	for id, cp := range checkpoints {
		rec := record{
			Fanclub:  cp.Fanclub,
			Username: cp.Username,
			UserID:   cp.UserID,
			Price:    cp.Price,
		}
		if cp.LastSynced != nil {
			s := models.FormatTimestamp(*cp.LastSynced)
			rec.Update = &s
		}
		raw[strconv.FormatInt(id, 10)] = rec
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(raw); err != nil {
		return nil, fmt.Errorf("failed to encode checkpoints: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultPath returns checkpoints.json inside the platform data directory
func DefaultPath() (string, error) {
	dir, err := getDataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dir, "checkpoints.json"), nil
}

func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "fcsync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "fcsync")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "fcsync")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "fcsync")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return dataDir, nil
}
