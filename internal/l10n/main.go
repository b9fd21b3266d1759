// Package l10n translates user-facing messages through gettext catalogs
// installed under the "adguardhome-certinjector" text domain.
package l10n

import (
	"fmt"

	"github.com/snapcore/go-gettext"
)

var domain = gettext.TextDomain{Name: "adguardhome-certinjector"}

var locale gettext.Catalog

func init() {
	locale = domain.UserLocale()
}

// T localizes simple strings. When vars are given the translation is used
// as a format string.
func T(str string, vars ...interface{}) string {
	translation := locale.Gettext(str)
	if len(vars) > 0 {
		translation = fmt.Sprintf(translation, vars...)
	}
	return translation
}

// TN localizes strings with plurals.
func TN(singular, plural string, n uint32, vars ...interface{}) string {
	translation := locale.NGettext(singular, plural, n)
	if len(vars) > 0 {
		translation = fmt.Sprintf(translation, vars...)
	}
	return translation
}
