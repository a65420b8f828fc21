// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders used by sound uploads
package encode

// Encoder encodes interleaved int16 samples
type Encoder interface {
	// Encode converts one block of PCM samples to encoded data
	Encode(samples []int16) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
