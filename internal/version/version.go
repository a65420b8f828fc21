// ABOUTME: Version constants for chime
// ABOUTME: Reported by CLIs, the remote hello and mDNS TXT records
package version

const (
	// Version is the release version
	Version = "0.1.0"
	// Product is the product name
	Product = "chime"
	// Manufacturer identifies the publisher
	Manufacturer = "chime-audio"
)
