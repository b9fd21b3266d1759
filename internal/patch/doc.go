// Package patch decides whether the TLS material stored in a configuration
// document must be replaced and performs the replacement.
//
// # Usage
//
//	p := &patch.Patcher{Store: file, Logger: slog.Default()}
//	outcome, err := p.Apply(doc, patch.Candidate{Key: key, Cert: cert})
//
// # Guarantees
//
// Apply compares each field on its own using exact string equality. When
// nothing differs it returns a zero Outcome and touches nothing. Otherwise
// the sequence is always:
//
//  1. one Store.Backup call
//  2. mutation of the changed fields only
//  3. one Store.Replace call with the fully encoded document
//
// A failed backup stops the sequence before the document is mutated.
package patch
