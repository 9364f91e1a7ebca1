package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "triage"

// FilePath returns the location of the persisted settings:
// $XDG_CONFIG_HOME/triage/config.json, falling back to ~/.config.
func FilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

// defaultDataDir holds triage.db and the embedded JetStream store.
func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "")
}

func xdgPath(env, homeRel, file string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", appDir, file)
		}
		base = filepath.Join(home, homeRel)
	}
	return filepath.Join(base, appDir, file)
}

// fileBackend keeps dotted keys ("server.port") in a flat JSON object.
// Numbers are held as json.Number so fractional or oversized values are
// reported instead of silently truncated.
type fileBackend struct {
	path   string
	values map[string]any
}

// newFileBackend reads path if it exists. A missing or corrupt file yields
// an empty backend; corruption is logged.
func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&b.values); err != nil {
			slog.Warn("config file is not a JSON object, using defaults", "path", path, "error", err)
			b.values = map[string]any{}
		}
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case json.Number:
		return v.String(), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	default:
		return "", true, fmt.Errorf("%s: expected a string, found %T", key, v)
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	var text string
	switch v := b.values[key].(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		text = v.String()
	case string:
		text = v
	case int:
		return v, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, found %T", key, v)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %q is not a valid integer", key, text)
	}
	return n, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	return b.put(key, val)
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.put(key, json.Number(strconv.Itoa(val)))
}

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.values[key]; !ok {
		return nil
	}
	delete(b.values, key)
	return b.flush()
}

func (b *fileBackend) put(key string, val any) error {
	b.values[key] = val
	return b.flush()
}

// flush rewrites the whole file through a temp file in the same directory
// so readers never see a partial write.
func (b *fileBackend) flush() error {
	out, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(out, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.path, err)
	}
	return nil
}
