package patch

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrBackup is returned when the copy taken before writing could not be
	// created. The persisted document is left untouched.
	ErrBackup = errors.New("backup failed")
	// ErrWrite is returned when encoding or writing the patched document
	// failed after a successful backup.
	ErrWrite = errors.New("write failed")
)

// Document is a loaded configuration document holding TLS material.
type Document interface {
	PrivateKey() string
	CertificateChain() string
	SetPrivateKey(key string)
	SetCertificateChain(chain string)
	// Encode serializes the whole document.
	Encode() ([]byte, error)
}

// Store is the persisted location the Document was loaded from.
type Store interface {
	// Backup copies the persisted document aside.
	Backup() error
	// Replace overwrites the persisted document with data.
	Replace(data []byte) error
}

// Candidate is the freshly read TLS material.
type Candidate struct {
	Key  string
	Cert string
}

// Outcome reports which fields were (or, in dry-run mode, would be) replaced.
type Outcome struct {
	KeyChanged  bool
	CertChanged bool
}

// Changed reports whether at least one field differs.
func (o Outcome) Changed() bool {
	return o.KeyChanged || o.CertChanged
}

// Patcher applies a Candidate to a Document.
type Patcher struct {
	Store  Store
	Logger *slog.Logger
	// DryRun computes the Outcome without backup, mutation or write.
	DryRun bool
}

// Compare computes the Outcome of applying c to doc without side effects.
func Compare(doc Document, c Candidate) Outcome {
	return Outcome{
		KeyChanged:  doc.PrivateKey() != c.Key,
		CertChanged: doc.CertificateChain() != c.Cert,
	}
}

// Apply replaces the fields of doc that differ from c. See the package
// documentation for the ordering of side effects.
func (p *Patcher) Apply(doc Document, c Candidate) (Outcome, error) {
	logger := p.logger()
	outcome := Compare(doc, c)

	if !outcome.CertChanged {
		logger.Info("certificate chain is unchanged")
	}
	if !outcome.KeyChanged {
		logger.Info("private key is unchanged")
	}
	if !outcome.Changed() {
		logger.Info("key and certificate chain are unchanged, nothing to do")
		return outcome, nil
	}
	if p.DryRun {
		logger.Info("dry run, leaving document untouched",
			"key_changed", outcome.KeyChanged,
			"cert_changed", outcome.CertChanged)
		return outcome, nil
	}

	if err := p.Store.Backup(); err != nil {
		return outcome, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	if outcome.KeyChanged {
		doc.SetPrivateKey(c.Key)
	}
	if outcome.CertChanged {
		doc.SetCertificateChain(c.Cert)
	}

	data, err := doc.Encode()
	if err != nil {
		return outcome, fmt.Errorf("%w: cannot encode document: %w", ErrWrite, err)
	}
	logger.Info("writing new key and/or certificate chain",
		"key_changed", outcome.KeyChanged,
		"cert_changed", outcome.CertChanged)
	if err := p.Store.Replace(data); err != nil {
		return outcome, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return outcome, nil
}

func (p *Patcher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
