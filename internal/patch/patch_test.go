package patch

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeDocument struct {
	key       string
	cert      string
	setCalls  []string
	encodeErr error
}

func (d *fakeDocument) PrivateKey() string       { return d.key }
func (d *fakeDocument) CertificateChain() string { return d.cert }

func (d *fakeDocument) SetPrivateKey(key string) {
	d.setCalls = append(d.setCalls, "key")
	d.key = key
}

func (d *fakeDocument) SetCertificateChain(chain string) {
	d.setCalls = append(d.setCalls, "cert")
	d.cert = chain
}

func (d *fakeDocument) Encode() ([]byte, error) {
	if d.encodeErr != nil {
		return nil, d.encodeErr
	}
	return []byte(d.key + "|" + d.cert), nil
}

// fakeStore records the order of calls made against it.
type fakeStore struct {
	calls      []string
	written    string
	backupErr  error
	replaceErr error
}

func (s *fakeStore) Backup() error {
	s.calls = append(s.calls, "backup")
	return s.backupErr
}

func (s *fakeStore) Replace(data []byte) error {
	s.calls = append(s.calls, "replace")
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.written = string(data)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPatcher_Apply(t *testing.T) {
	tests := []struct {
		name         string
		candidate    Candidate
		wantOutcome  Outcome
		wantCalls    []string
		wantSetCalls []string
		wantKey      string
		wantCert     string
	}{
		{
			name:        "unchanged pair is a no-op",
			candidate:   Candidate{Key: "A", Cert: "B"},
			wantOutcome: Outcome{},
			wantKey:     "A",
			wantCert:    "B",
		},
		{
			name:         "only key changed",
			candidate:    Candidate{Key: "A2", Cert: "B"},
			wantOutcome:  Outcome{KeyChanged: true},
			wantCalls:    []string{"backup", "replace"},
			wantSetCalls: []string{"key"},
			wantKey:      "A2",
			wantCert:     "B",
		},
		{
			name:         "only cert changed",
			candidate:    Candidate{Key: "A", Cert: "B2"},
			wantOutcome:  Outcome{CertChanged: true},
			wantCalls:    []string{"backup", "replace"},
			wantSetCalls: []string{"cert"},
			wantKey:      "A",
			wantCert:     "B2",
		},
		{
			name:         "both changed takes a single backup",
			candidate:    Candidate{Key: "A2", Cert: "B2"},
			wantOutcome:  Outcome{KeyChanged: true, CertChanged: true},
			wantCalls:    []string{"backup", "replace"},
			wantSetCalls: []string{"key", "cert"},
			wantKey:      "A2",
			wantCert:     "B2",
		},
		{
			name:         "trailing newline counts as a change",
			candidate:    Candidate{Key: "A\n", Cert: "B"},
			wantOutcome:  Outcome{KeyChanged: true},
			wantCalls:    []string{"backup", "replace"},
			wantSetCalls: []string{"key"},
			wantKey:      "A\n",
			wantCert:     "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &fakeDocument{key: "A", cert: "B"}
			store := &fakeStore{}
			p := &Patcher{Store: store, Logger: quietLogger()}

			outcome, err := p.Apply(doc, tt.candidate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantOutcome, outcome); diff != "" {
				t.Errorf("Apply() outcome mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCalls, store.calls); diff != "" {
				t.Errorf("store calls mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSetCalls, doc.setCalls); diff != "" {
				t.Errorf("document mutations mismatch (-want +got):\n%s", diff)
			}
			if doc.key != tt.wantKey || doc.cert != tt.wantCert {
				t.Errorf("expected document {%q, %q}, got {%q, %q}", tt.wantKey, tt.wantCert, doc.key, doc.cert)
			}
			if outcome.Changed() && store.written != tt.wantKey+"|"+tt.wantCert {
				t.Errorf("expected written document %q, got %q", tt.wantKey+"|"+tt.wantCert, store.written)
			}
		})
	}
}

func TestPatcher_ApplyBackupFailure(t *testing.T) {
	doc := &fakeDocument{key: "A", cert: "B"}
	store := &fakeStore{backupErr: errors.New("disk full")}
	p := &Patcher{Store: store, Logger: quietLogger()}

	outcome, err := p.Apply(doc, Candidate{Key: "A2", Cert: "B2"})
	if !errors.Is(err, ErrBackup) {
		t.Fatalf("expected ErrBackup, got %v", err)
	}
	if !outcome.KeyChanged || !outcome.CertChanged {
		t.Errorf("expected both fields reported as changed, got %+v", outcome)
	}
	if diff := cmp.Diff([]string{"backup"}, store.calls); diff != "" {
		t.Errorf("store calls mismatch (-want +got):\n%s", diff)
	}
	if len(doc.setCalls) != 0 {
		t.Errorf("document must not be mutated after a failed backup, got %v", doc.setCalls)
	}
}

func TestPatcher_ApplyWriteFailure(t *testing.T) {
	t.Run("replace fails", func(t *testing.T) {
		doc := &fakeDocument{key: "A", cert: "B"}
		store := &fakeStore{replaceErr: errors.New("read-only file system")}
		p := &Patcher{Store: store, Logger: quietLogger()}

		_, err := p.Apply(doc, Candidate{Key: "A2", Cert: "B"})
		if !errors.Is(err, ErrWrite) {
			t.Fatalf("expected ErrWrite, got %v", err)
		}
		if errors.Is(err, ErrBackup) {
			t.Errorf("write failure must not be reported as a backup failure: %v", err)
		}
		if diff := cmp.Diff([]string{"backup", "replace"}, store.calls); diff != "" {
			t.Errorf("store calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("encode fails", func(t *testing.T) {
		doc := &fakeDocument{key: "A", cert: "B", encodeErr: errors.New("bad node")}
		store := &fakeStore{}
		p := &Patcher{Store: store, Logger: quietLogger()}

		_, err := p.Apply(doc, Candidate{Key: "A", Cert: "B2"})
		if !errors.Is(err, ErrWrite) {
			t.Fatalf("expected ErrWrite, got %v", err)
		}
		if diff := cmp.Diff([]string{"backup"}, store.calls); diff != "" {
			t.Errorf("store calls mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPatcher_ApplyDryRun(t *testing.T) {
	doc := &fakeDocument{key: "A", cert: "B"}
	store := &fakeStore{}
	p := &Patcher{Store: store, Logger: quietLogger(), DryRun: true}

	outcome, err := p.Apply(doc, Candidate{Key: "A2", Cert: "B2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Outcome{KeyChanged: true, CertChanged: true}, outcome); diff != "" {
		t.Errorf("Apply() outcome mismatch (-want +got):\n%s", diff)
	}
	if len(store.calls) != 0 || len(doc.setCalls) != 0 {
		t.Errorf("dry run must not touch anything, got store calls %v, mutations %v", store.calls, doc.setCalls)
	}
}

func TestPatcher_NilLogger(t *testing.T) {
	p := &Patcher{Store: &fakeStore{}}
	if _, err := p.Apply(&fakeDocument{key: "A", cert: "B"}, Candidate{Key: "A", Cert: "B"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
