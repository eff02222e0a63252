// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies relay binaries on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("relay/%s (%s)", Version, Sha)
}
