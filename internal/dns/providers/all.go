// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns/memory"
	_ "github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns/powerdns"
)
