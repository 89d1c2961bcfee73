// Package fingerprint produces the stable per-device identifier used
// as a secondary factor against session hijacking across devices.
package fingerprint

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Provider yields a device fingerprint
type Provider interface {
	Fingerprint() (string, error)
}

// DeviceProvider derives a fingerprint from stable host attributes
// plus a random component persisted next to the config, so the value
// survives restarts but differs across installs. The result is cached
// for process lifetime.
type DeviceProvider struct {
	// StatePath is where the random component lives. Empty means
	// ".gatehouse-device" in the working directory.
	StatePath string

	once sync.Once
	fp   string
	err  error
}

// Fingerprint returns the cached device identifier, computing it on
// first use.
func (p *DeviceProvider) Fingerprint() (string, error) {
	p.once.Do(func() {
		p.fp, p.err = p.compute()
	})
	return p.fp, p.err
}

func (p *DeviceProvider) compute() (string, error) {
	path := p.StatePath
	if path == "" {
		path = filepath.Join(".", ".gatehouse-device")
	}

	seed, err := os.ReadFile(path)
	if err != nil {
		seed = make([]byte, 16)
		if _, err := rand.Read(seed); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, seed, 0o600); err != nil {
			return "", err
		}
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	h := sha256.New()
	h.Write(seed)
	h.Write([]byte(host))
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte(runtime.GOARCH))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Static returns a provider with a fixed fingerprint. Tests use it to
// simulate distinct devices.
func Static(fp string) Provider {
	return staticProvider(fp)
}

type staticProvider string

func (s staticProvider) Fingerprint() (string, error) {
	return string(s), nil
}
