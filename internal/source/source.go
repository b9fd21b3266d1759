// Package source locates and reads the TLS material that should end up in
// the AdGuard Home configuration.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLetsEncryptDir is where certbot keeps the current certificates of
// each domain.
const DefaultLetsEncryptDir = "/etc/letsencrypt/live"

const (
	privateKeyFile = "privkey.pem"
	fullChainFile  = "fullchain.pem"
)

// ErrRead is returned when a key or certificate chain file cannot be read.
var ErrRead = errors.New("cannot read TLS material")

// Paths are the files holding the private key and the certificate chain.
type Paths struct {
	Key   string
	Chain string
}

// Source is either Manual or DomainDerived.
type Source interface {
	// Paths resolves the source to concrete file paths.
	Paths() Paths
	// Mode is a short human readable name of the source kind.
	Mode() string
}

// Manual points at explicitly given key and chain files.
type Manual struct {
	KeyPath   string
	ChainPath string
}

func (m Manual) Paths() Paths {
	return Paths{Key: m.KeyPath, Chain: m.ChainPath}
}

func (m Manual) Mode() string { return "manual" }

// DomainDerived uses the certbot layout <BaseDir>/<Domain>/{privkey,fullchain}.pem.
type DomainDerived struct {
	Domain string
	// BaseDir defaults to DefaultLetsEncryptDir.
	BaseDir string
}

func (d DomainDerived) Paths() Paths {
	base := d.BaseDir
	if base == "" {
		base = DefaultLetsEncryptDir
	}
	dir := filepath.Join(base, d.Domain)
	return Paths{
		Key:   filepath.Join(dir, privateKeyFile),
		Chain: filepath.Join(dir, fullChainFile),
	}
}

func (d DomainDerived) Mode() string { return "letsencrypt" }

// Material is the content of a key and certificate chain pair.
type Material struct {
	Key   string
	Chain string
}

// ReadPair reads both files of p.
func ReadPair(p Paths) (Material, error) {
	key, err := Read(p.Key)
	if err != nil {
		return Material{}, err
	}
	chain, err := Read(p.Chain)
	if err != nil {
		return Material{}, err
	}
	return Material{Key: key, Chain: chain}, nil
}

// Read returns the content of the file at path without its final line
// terminator. Only one terminator is removed so that the value matches what
// AdGuard Home stores.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	return trimTerminator(string(data)), nil
}

func trimTerminator(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}
