package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/adguardhome-tools/certinjector/internal/conf"
	"github.com/adguardhome-tools/certinjector/internal/document"
	"github.com/adguardhome-tools/certinjector/internal/l10n"
	"github.com/adguardhome-tools/certinjector/internal/patch"
	"github.com/adguardhome-tools/certinjector/internal/service"
	"github.com/adguardhome-tools/certinjector/internal/source"
)

// errValidation marks bad or conflicting command line input.
var errValidation = errors.New("invalid arguments")

// Options is the resolved, immutable input of a single run.
type Options struct {
	ConfigPath     string
	Source         source.Source
	BackupSuffix   string
	DryRun         bool
	RestartUnit    string
	RestartTimeout time.Duration
	LogLevel       slog.Level
}

func run(c *cli.Context, restarter service.Restarter) error {
	settingsPath := c.String(settingsFlag)
	cs := &conf.ConfigSource{
		Path:      settingsPath,
		DropInDir: settingsPath + ".d",
	}
	settings, err := cs.Read()
	if err != nil {
		return err
	}

	opts, err := parseOptions(c, settings)
	if err != nil {
		cli.ShowAppHelp(c)
		return err
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: opts.LogLevel})).
		With("run", uuid.NewString())
	slog.SetDefault(logger)

	outcome, err := patchConfig(opts, logger)
	if err != nil {
		return err
	}
	report(c.App.Writer, opts, outcome)

	if !outcome.Changed() || opts.DryRun || opts.RestartUnit == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Context, opts.RestartTimeout)
	defer cancel()
	logger.Info("restarting unit", "unit", opts.RestartUnit)
	return withSpinner(c.App.Writer, l10n.T("Restarting %s", opts.RestartUnit), func() error {
		return restarter.Restart(ctx, opts.RestartUnit)
	})
}

// parseOptions validates the command line and merges it over settings.
func parseOptions(c *cli.Context, settings conf.Config) (Options, error) {
	opts := Options{
		ConfigPath:     c.String(configFlag),
		BackupSuffix:   settings.BackupSuffix,
		DryRun:         c.Bool(dryRunFlag),
		RestartUnit:    settings.RestartUnit,
		RestartTimeout: settings.RestartTimeout,
		LogLevel:       settings.LogLevel,
	}

	domain := c.String(domainFlag)
	keyPath := c.String(privateKeyFlag)
	chainPath := c.String(certChainFlag)

	if opts.ConfigPath == "" {
		return opts, fmt.Errorf("%w: %s", errValidation, l10n.T("missing AdGuard Home config file"))
	}
	if domain == "" && (keyPath == "" || chainPath == "") {
		return opts, fmt.Errorf("%w: %s", errValidation, l10n.T("must specify domain or key+cert path"))
	}
	if domain != "" && (keyPath != "" || chainPath != "") {
		return opts, fmt.Errorf("%w: %s", errValidation, l10n.T("must specify only one of domain or key+cert"))
	}

	if domain != "" {
		if domain == "." || domain == ".." || strings.ContainsAny(domain, "/\\") {
			return opts, fmt.Errorf("%w: %s", errValidation, l10n.T("invalid domain %q", domain))
		}
		baseDir := settings.LetsEncryptDir
		if c.IsSet(letsEncryptDirFlag) {
			baseDir = c.String(letsEncryptDirFlag)
		}
		opts.Source = source.DomainDerived{Domain: domain, BaseDir: baseDir}
	} else {
		opts.Source = source.Manual{KeyPath: keyPath, ChainPath: chainPath}
	}

	if c.IsSet(restartUnitFlag) {
		opts.RestartUnit = c.String(restartUnitFlag)
	}
	if c.IsSet(logLevelFlag) {
		level, err := conf.ParseLevel(c.String(logLevelFlag))
		if err != nil {
			return opts, fmt.Errorf("%w: %w", errValidation, err)
		}
		opts.LogLevel = level
	}

	return opts, nil
}

// patchConfig reads the candidate material and applies it to the AdGuard
// Home configuration.
func patchConfig(opts Options, logger *slog.Logger) (patch.Outcome, error) {
	paths := opts.Source.Paths()
	logger.Info("proceeding", "mode", opts.Source.Mode(), "key", paths.Key, "chain", paths.Chain)

	doc, err := document.Load(opts.ConfigPath)
	if err != nil {
		return patch.Outcome{}, err
	}
	material, err := source.ReadPair(paths)
	if err != nil {
		return patch.Outcome{}, err
	}

	file := &document.File{Path: opts.ConfigPath, BackupSuffix: opts.BackupSuffix}
	p := &patch.Patcher{Store: file, Logger: logger, DryRun: opts.DryRun}
	outcome, err := p.Apply(doc, patch.Candidate{Key: material.Key, Cert: material.Chain})
	if err != nil {
		if !errors.Is(err, patch.ErrBackup) && outcome.Changed() {
			logger.Error("writing the config file failed, a backup is available", "backup", file.BackupPath())
		}
		return outcome, err
	}
	if outcome.Changed() && !opts.DryRun {
		logger.Info("config file updated", "path", opts.ConfigPath, "backup", file.BackupPath())
	}
	return outcome, nil
}

func report(w io.Writer, opts Options, outcome patch.Outcome) {
	var n uint32
	if outcome.KeyChanged {
		n++
	}
	if outcome.CertChanged {
		n++
	}

	switch {
	case n == 0:
		fmt.Fprintln(w, l10n.T("Key and certificate chain are unchanged in %s", opts.ConfigPath))
	case opts.DryRun:
		fmt.Fprintln(w, l10n.TN("Would update %d TLS field in %s", "Would update %d TLS fields in %s", n, n, opts.ConfigPath))
	default:
		fmt.Fprintln(w, l10n.TN("Updated %d TLS field in %s", "Updated %d TLS fields in %s", n, n, opts.ConfigPath))
	}
}

// withSpinner runs fn while showing a spinner on w, if w is a terminal.
func withSpinner(w io.Writer, text string, fn func() error) error {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fn()
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + text
	s.Start()
	defer s.Stop()
	return fn()
}
