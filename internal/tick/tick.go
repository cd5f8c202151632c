// Package tick implements the shared temporal unit for both wkmp cores: a
// fixed 28,224,000 Hz integer tick, the common multiple of the 44.1/48/96 kHz
// sample-rate families. All persisted times and inter-component contracts
// use ticks; milliseconds and seconds appear only at display boundaries
// (the control surface, logs, UI).
package tick

// Rate is the fixed tick rate in Hz. It divides evenly into 44100, 48000,
// 88200, 96000, 176400, and 192000 Hz.
const Rate int64 = 28_224_000

// Tick is an absolute or relative point in the fixed-rate time base.
type Tick int64

// FromSeconds truncates seconds × Rate to an integer Tick.
func FromSeconds(seconds float64) Tick {
	return Tick(seconds * float64(Rate))
}

// ToSeconds converts a Tick back to fractional seconds.
func (t Tick) ToSeconds() float64 {
	return float64(t) / float64(Rate)
}

// FromMillis truncates milliseconds × Rate / 1000 to an integer Tick.
func FromMillis(ms int64) Tick {
	return Tick(ms * Rate / 1000)
}

// ToMillis converts a Tick to integer milliseconds (truncating).
func (t Tick) ToMillis() int64 {
	return int64(t) * 1000 / Rate
}

// FromSampleIndex converts a sample index at the given sample rate to ticks.
func FromSampleIndex(sampleIndex int64, sampleRate int) Tick {
	return Tick(sampleIndex * Rate / int64(sampleRate))
}

// ToSampleIndex converts a Tick to a sample index at the given sample rate
// (truncating).
func (t Tick) ToSampleIndex(sampleRate int) int64 {
	return int64(t) * int64(sampleRate) / Rate
}
