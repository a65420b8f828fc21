// ABOUTME: Splits a sample buffer into fixed-size encoded packets
// ABOUTME: The last packet is padded with silence
package encode

import "fmt"

// Packetize encodes samples in blocks of frameSize frames. A partial last
// block is zero padded.
func Packetize(enc Encoder, samples []int16, frameSize, channels int) ([][]byte, error) {
	if frameSize <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid packet layout: %d frames x %d channels", frameSize, channels)
	}

	block := frameSize * channels
	packets := make([][]byte, 0, (len(samples)+block-1)/block)
	frame := make([]int16, block)

	for off := 0; off < len(samples); off += block {
		end := min(off+block, len(samples))
		n := copy(frame, samples[off:end])
		clear(frame[n:])

		pkt, err := enc.Encode(frame)
		if err != nil {
			return nil, fmt.Errorf("failed to encode packet %d: %w", len(packets), err)
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
