// ABOUTME: Linear-interpolation resampler for int16 PCM
// ABOUTME: Converts narrowband capture rates to the host render rate
package resample

// Resampler converts interleaved int16 PCM between sample rates using
// linear interpolation. Good enough for narrowband voice; anything fancier
// is wasted on an 8/16 kHz G.711 source.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a resampler from inputRate to outputRate for the given
// channel count.
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input samples at inputRate into output at outputRate
// and returns the number of output samples written. Both slices hold
// interleaved frames.
func (r *Resampler) Resample(input []int16, output []int16) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputPos := r.position
		inputIdx := int(inputPos)

		if inputIdx >= inputFrames-1 {
			break
		}

		frac := inputPos - float64(inputIdx)

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[(inputIdx+1)*r.channels+ch]
			interpolated := float64(s1)*(1.0-frac) + float64(s2)*frac
			output[outIdx*r.channels+ch] = int16(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	// Keep only the fractional part for the next chunk.
	r.position -= float64(int(r.position))

	return outIdx * r.channels
}

// Reset clears interpolation state.
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded returns how many output samples inputSamples will produce.
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded returns how many input samples are needed to produce
// outputSamples.
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
