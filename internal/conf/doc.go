// Package conf loads the settings of adguardhome-certinjector itself (not
// the AdGuard Home configuration it patches).
//
// # Usage
//
//	cs := &conf.ConfigSource{
//	    Path:      conf.DefaultPath,
//	    DropInDir: conf.DefaultDropInDir,
//	}
//	config, err := cs.Read()
//
// # Load Order
//
//  1. Embedded defaults (default.toml)
//  2. Main config file: /etc/adguardhome-certinjector/config.toml
//  3. Drop-in files: /etc/adguardhome-certinjector/config.toml.d/*.toml,
//     in lexicographic order
//
// Command line flags are applied by the caller on top of the result.
//
// # Keys
//
//   - letsencrypt-dir: base directory of the per-domain certbot layout
//   - backup-suffix: appended to the AdGuard Home config path for the backup
//   - log-level: DEBUG, INFO, WARN or ERROR
//   - restart-unit: systemd unit restarted after a change, empty to disable
//   - restart-timeout: how long to wait for the restart job, e.g. "30s"
//
// configDTO uses pointer fields so a layer that does not mention a key
// leaves the value from the previous layer alone, while an explicit empty
// string still overrides it.
package conf
