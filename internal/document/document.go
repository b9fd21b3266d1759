// Package document loads and rewrites AdGuard Home YAML configuration
// files, touching nothing but the TLS private key and certificate chain.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrRead is returned when the configuration file cannot be read.
	ErrRead = errors.New("cannot read configuration")
	// ErrParse is returned when the configuration is not YAML or lacks the
	// tls.private_key / tls.certificate_chain strings.
	ErrParse = errors.New("cannot parse configuration")
)

const (
	tlsKey        = "tls"
	privateKeyKey = "private_key"
	chainKey      = "certificate_chain"
)

// Config is a parsed configuration document. The whole node tree is kept so
// comments, key order and unrelated sections are written back as loaded.
type Config struct {
	root  yaml.Node
	key   *yaml.Node
	chain *yaml.Node
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, &cfg.root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if cfg.root.Kind != yaml.DocumentNode || len(cfg.root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	tls, err := lookup(cfg.root.Content[0], tlsKey)
	if err != nil {
		return nil, err
	}
	if tls.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s is not a mapping", ErrParse, tlsKey)
	}
	if cfg.key, err = lookupString(tls, privateKeyKey); err != nil {
		return nil, err
	}
	if cfg.chain, err = lookupString(tls, chainKey); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PrivateKey returns tls.private_key.
func (c *Config) PrivateKey() string { return scalarString(c.key) }

// CertificateChain returns tls.certificate_chain.
func (c *Config) CertificateChain() string { return scalarString(c.chain) }

// SetPrivateKey replaces tls.private_key.
func (c *Config) SetPrivateKey(key string) { setString(c.key, key) }

// SetCertificateChain replaces tls.certificate_chain.
func (c *Config) SetCertificateChain(chain string) { setString(c.chain, chain) }

// Encode serializes the whole document with two-space indentation, the
// layout AdGuard Home itself writes.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&c.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookup returns the value node stored under key in a mapping node.
func lookup(node *yaml.Node, key string) (*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected mapping looking up %q", ErrParse, key)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1], nil
		}
	}
	return nil, fmt.Errorf("%w: missing %q", ErrParse, key)
}

// lookupString returns the scalar node under key. A null value is accepted
// and read as the empty string.
func lookupString(node *yaml.Node, key string) (*yaml.Node, error) {
	value, err := lookup(node, key)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, tlsKey)
	}
	if value.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: %s.%s is not a string", ErrParse, tlsKey, key)
	}
	switch value.ShortTag() {
	case "!!str", "!!null":
	default:
		return nil, fmt.Errorf("%w: %s.%s is %s, not a string", ErrParse, tlsKey, key, value.ShortTag())
	}
	return value, nil
}

func scalarString(node *yaml.Node) string {
	if node.ShortTag() == "!!null" {
		return ""
	}
	return node.Value
}

func setString(node *yaml.Node, value string) {
	node.Tag = "!!str"
	node.Value = value
	// PEM blocks are written as literal blocks. Values a block scalar cannot
	// carry exactly (leading line break, carriage returns, edge whitespace)
	// are double quoted instead.
	if strings.Contains(value, "\n") {
		node.Style = yaml.LiteralStyle
	}
	if !roundTrips(node) {
		node.Style = yaml.DoubleQuotedStyle
	}
}

// roundTrips reports whether the scalar node encodes to YAML that decodes
// back to exactly its value.
func roundTrips(node *yaml.Node) bool {
	scalar := *node
	scalar.HeadComment, scalar.LineComment, scalar.FootComment = "", "", ""
	doc := yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "v"},
			&scalar,
		},
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return false
	}
	var decoded struct {
		V string `yaml:"v"`
	}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return false
	}
	return decoded.V == node.Value
}
