// ABOUTME: Version and product identification constants
// ABOUTME: Reported to servers in client/hello device info
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name reported to servers
	Product = "Sendspin Player"

	// Manufacturer is the manufacturer reported to servers
	Manufacturer = "Sendspin"
)
