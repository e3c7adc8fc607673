package audio

// BytesPerSample is the width of one PCM16 sample.
const BytesPerSample = 2

// BytesPerSecond returns the PCM16 mono byte rate at sampleRate Hz.
func BytesPerSecond(sampleRate int) int {
	return sampleRate * BytesPerSample
}

// BytesForMS returns the PCM16 mono byte count covering ms milliseconds
// at sampleRate Hz, rounded down to a whole sample.
func BytesForMS(sampleRate, ms int) int {
	n := BytesPerSecond(sampleRate) * ms / 1000
	return n - n%BytesPerSample
}
