// Command adguardhome-certinjector copies a renewed private key and
// certificate chain into the tls section of an AdGuard Home configuration
// file. It is meant to run from a certbot deploy hook or a timer and does
// nothing when the configuration already holds the given material.
package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/adguardhome-tools/certinjector/internal/conf"
	"github.com/adguardhome-tools/certinjector/internal/l10n"
	"github.com/adguardhome-tools/certinjector/internal/service"
	"github.com/adguardhome-tools/certinjector/internal/source"
)

const (
	configFlag         = "config"
	domainFlag         = "domain"
	privateKeyFlag     = "privatekey"
	certChainFlag      = "certchain"
	letsEncryptDirFlag = "letsencrypt-dir"
	dryRunFlag         = "dry-run"
	restartUnitFlag    = "restart-unit"
	logLevelFlag       = "log-level"
	settingsFlag       = "settings"
)

func newApp(restarter service.Restarter) *cli.App {
	return &cli.App{
		Name:      "adguardhome-certinjector",
		Usage:     l10n.T("Patch the AdGuard Home config file with a renewed TLS key and certificate chain"),
		UsageText: "adguardhome-certinjector -c AdGuardHome.yaml (-d DOMAIN | -p privkey.pem -i fullchain.pem)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   l10n.T("Path to the AdGuard Home config `FILE`"),
			},
			&cli.StringFlag{
				Name:    domainFlag,
				Aliases: []string{"d"},
				Usage:   l10n.T("`DOMAIN` name for cert/key - Let's Encrypt (certbot) mode only"),
			},
			&cli.StringFlag{
				Name:    privateKeyFlag,
				Aliases: []string{"p", "k", "privkey"},
				Usage:   l10n.T("Path to your private key - manual mode"),
			},
			&cli.StringFlag{
				Name:    certChainFlag,
				Aliases: []string{"i", "f", "fullchain"},
				Usage:   l10n.T("Path to your public certificate chain - manual mode"),
			},
			&cli.StringFlag{
				Name:  letsEncryptDirFlag,
				Usage: l10n.T("Base `DIR` of the certbot live certificates (default from settings: %s)", source.DefaultLetsEncryptDir),
			},
			&cli.BoolFlag{
				Name:    dryRunFlag,
				Aliases: []string{"n"},
				Usage:   l10n.T("Report what would change without touching the config file"),
			},
			&cli.StringFlag{
				Name:  restartUnitFlag,
				Usage: l10n.T("systemd `UNIT` to restart after the config file changed"),
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: l10n.T("Log `LEVEL`: DEBUG, INFO, WARN or ERROR"),
			},
			&cli.StringFlag{
				Name:  settingsFlag,
				Value: conf.DefaultPath,
				Usage: l10n.T("Path to the settings `FILE` of this tool; drop-ins are read from FILE.d/"),
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, restarter)
		},
		HideHelpCommand: true,
	}
}

func main() {
	app := newApp(service.Systemd{})
	if err := app.Run(os.Args); err != nil {
		slog.Error(l10n.T("adguardhome-certinjector failed"), "error", err)
		os.Exit(1)
	}
}
