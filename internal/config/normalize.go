package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
)

const (
	DefaultLocale      = "en"
	DefaultServerAddr  = "127.0.0.1:8740"
	DefaultEnvironment = "default"

	TimeoutDefault      = 30 * time.Second
	TimeoutMin          = time.Second
	TimeoutMax          = 10 * time.Minute
	AddressDelayDefault = 300 * time.Millisecond
	AddressDelayMin     = 10 * time.Millisecond
	AddressDelayMax     = 5 * time.Second
)

// Defaults keeps variables in a JSON file store and history in sqlite,
// both under dir.
func Defaults(dir string) Settings {
	return Settings{
		Locale:             DefaultLocale,
		DefaultEnvironment: DefaultEnvironment,
		Variables:          "file:" + filepath.Join(dir, "data"),
		History:            "sqlite:" + filepath.Join(dir, "history.db"),
		AddressDelay:       Duration(AddressDelayDefault),
		HTTP: HTTPSettings{
			Timeout:         Duration(TimeoutDefault),
			FollowRedirects: true,
		},
		Server: ServerSettings{
			Addr:    DefaultServerAddr,
			Metrics: true,
		},
	}
}

// Normalise fills blanks from Defaults(dir) and clamps durations. Booleans
// are taken as given, so decode into Defaults before normalising.
func Normalise(in Settings, dir string) Settings {
	out := Defaults(dir)
	out.Locale = firstNonBlank(strings.ToLower(in.Locale), out.Locale)
	out.DefaultEnvironment = firstNonBlank(in.DefaultEnvironment, out.DefaultEnvironment)
	out.Variables = normaliseBackend(in.Variables, out.Variables)
	out.History = normaliseBackend(in.History, out.History)
	out.AddressDelay = clampDuration(
		in.AddressDelay,
		Duration(AddressDelayMin),
		Duration(AddressDelayMax),
		out.AddressDelay,
	)

	out.HTTP = HTTPSettings{
		Timeout:         clampDuration(
			in.HTTP.Timeout,
			Duration(TimeoutMin),
			Duration(TimeoutMax),
			out.HTTP.Timeout,
		),
		FollowRedirects: in.HTTP.FollowRedirects,
		Insecure:        in.HTTP.Insecure,
		Proxy:           strings.TrimSpace(in.HTTP.Proxy),
		HTTP2:           in.HTTP.HTTP2,
	}
	out.Server.Addr = firstNonBlank(in.Server.Addr, out.Server.Addr)
	out.Server.Metrics = in.Server.Metrics
	return out
}

// an unparsable backend keeps the default so a typo never points storage
// somewhere unexpected.
func normaliseBackend(in, def string) string {
	var b docstore.Backend
	if err := b.Set(in); err != nil {
		return def
	}
	return b.String()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func clampDuration[T ~int64](value, min, max, fallback T) T {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
