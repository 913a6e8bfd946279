// ABOUTME: Version and product identity constants
// ABOUTME: Reported in logs and the diagnostic report header
package version

const (
	Version      = "0.1.0"
	Product      = "Veepa Audio Probe"
	Manufacturer = "mpriessner"
)
