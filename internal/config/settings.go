package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/httpclient"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatJSON SettingsFormat = "json"
)

type Settings struct {
	Locale             string         `json:"locale"              toml:"locale"`
	DefaultEnvironment string         `json:"default_environment" toml:"default_environment"`
	Variables          string         `json:"variables"           toml:"variables"`
	History            string         `json:"history"             toml:"history"`
	AddressDelay       Duration       `json:"address_delay"       toml:"address_delay"`
	HTTP               HTTPSettings   `json:"http"                toml:"http"`
	Server             ServerSettings `json:"server"              toml:"server"`
}

type HTTPSettings struct {
	Timeout         Duration `json:"timeout"          toml:"timeout"`
	FollowRedirects bool     `json:"follow_redirects" toml:"follow_redirects"`
	Insecure        bool     `json:"insecure"         toml:"insecure"`
	Proxy           string   `json:"proxy"            toml:"proxy"`
	HTTP2           bool     `json:"http2"            toml:"http2"`
}

type ServerSettings struct {
	Addr    string `json:"addr"    toml:"addr"`
	Metrics bool   `json:"metrics" toml:"metrics"`
}

// Duration reads and writes as a Go duration string such as "1.5s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(bytes.TrimSpace(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type SettingsFormat string

type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

func (s Settings) HTTPOptions() httpclient.Options {
	return httpclient.Options{
		Timeout:            s.HTTP.Timeout.Std(),
		FollowRedirects:    s.HTTP.FollowRedirects,
		InsecureSkipVerify: s.HTTP.Insecure,
		ProxyURL:           s.HTTP.Proxy,
		HTTP2:              s.HTTP.HTTP2,
	}
}

func (s Settings) VariablesBackend() (docstore.Backend, error) {
	return parseBackend(s.Variables)
}

func (s Settings) HistoryBackend() (docstore.Backend, error) {
	return parseBackend(s.History)
}

func parseBackend(raw string) (docstore.Backend, error) {
	var b docstore.Backend
	if err := b.Set(raw); err != nil {
		return docstore.Backend{}, errdef.Wrap(errdef.CodeConfig, err, "storage backend %q", raw)
	}
	return b, nil
}

// LoadSettings reads settings.toml, then settings.json, from Dir(). A
// missing file falls through to the next candidate and finally to the
// defaults; a file that exists but does not parse is an error.
func LoadSettings() (Settings, SettingsHandle, error) {
	return LoadSettingsFrom(Dir())
}

func LoadSettingsFrom(dir string) (Settings, SettingsHandle, error) {
	candidates := []SettingsHandle{
		{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
		{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeFilesystem, err, "read settings %q", candidate.Path),
			)
			continue
		}

		settings := Defaults(dir)
		if err := decodeSettings(data, candidate.Format, &settings); err != nil {
			return Settings{}, SettingsHandle{}, errdef.Wrap(
				errdef.CodeConfig,
				err,
				"parse settings %q",
				candidate.Path,
			)
		}
		return Normalise(settings, dir), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}
	return Defaults(dir), candidates[0], nil
}

func decodeSettings(data []byte, format SettingsFormat, into *Settings) error {
	switch format {
	case SettingsFormatTOML:
		return toml.Unmarshal(data, into)
	case SettingsFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		return decoder.Decode(into)
	default:
		return errdef.New(errdef.CodeConfig, "unsupported settings format %q", format)
	}
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}
	settings = Normalise(settings, filepath.Dir(path))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "ensure settings directory")
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case SettingsFormatTOML:
		data, err = toml.Marshal(settings)
	case SettingsFormatJSON:
		data, err = json.MarshalIndent(settings, "", "  ")
	default:
		return errdef.New(errdef.CodeConfig, "unsupported settings format %q", format)
	}
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "encode settings")
	}

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write settings %q", path)
	}
	return nil
}

// readers never see a partial file: write a sibling temp file, then rename.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".reststudio-settings-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
