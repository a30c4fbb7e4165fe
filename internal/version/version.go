// ABOUTME: Build and product identification
// ABOUTME: Reported by the CLI version command and the control server hello
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0-dev"

const (
	Product      = "SonicDeck"
	Manufacturer = "SonicDeck Project"
)

// String returns the product name and version
func String() string {
	return Product + " " + Version
}
