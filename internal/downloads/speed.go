package downloads

import "time"

const (
	// minSampleSpacing is the shortest interval between two appended
	// samples; progress ticks arriving faster are folded into the next one.
	minSampleSpacing = time.Second

	// recentWindow is how far back samples keep full resolution. A live
	// sparkline needs smooth 1-second detail only for its visible tail.
	recentWindow = 10 * time.Second

	// bucketWidth is the coarse resolution older samples are collapsed to.
	bucketWidth = 6 * time.Second
)

// consolidate bounds a speed history's memory for long downloads. Samples
// older than recentWindow are re-bucketed into contiguous bucketWidth
// windows; each bucket collapses to a single sample carrying the mean speed
// and the last cumulative byte count seen in that bucket. Recent samples
// pass through untouched. The input must be in ascending time order; the
// output preserves it.
func consolidate(samples []SpeedSample, now time.Time) []SpeedSample {
	if len(samples) == 0 {
		return samples
	}

	cutoff := now.Add(-recentWindow)
	split := len(samples)
	for i, s := range samples {
		if !s.Timestamp.Before(cutoff) {
			split = i
			break
		}
	}
	older, recent := samples[:split], samples[split:]
	if len(older) == 0 {
		return samples
	}

	out := make([]SpeedSample, 0, len(older)/2+len(recent)+1)

	bucketStart := older[0].Timestamp
	var sum float64
	var count int
	var last SpeedSample

	flush := func() {
		if count == 0 {
			return
		}
		out = append(out, SpeedSample{
			Timestamp:       last.Timestamp,
			SpeedKBps:       sum / float64(count),
			CumulativeBytes: last.CumulativeBytes,
		})
		sum, count = 0, 0
	}

	for _, s := range older {
		if s.Timestamp.Sub(bucketStart) >= bucketWidth {
			flush()
			bucketStart = s.Timestamp
		}
		sum += s.SpeedKBps
		count++
		last = s
	}
	flush()

	return append(out, recent...)
}

// speedKBps computes a clamped speed from a byte delta over an elapsed
// duration. Negative deltas (a restarted or rewritten download) clamp to 0
// rather than producing a negative spike.
func speedKBps(bytesDelta int64, elapsed time.Duration) float64 {
	ms := float64(elapsed.Milliseconds())
	if ms <= 0 {
		return 0
	}
	speed := float64(bytesDelta) / ms * 1000 / 1024
	if speed < 0 {
		return 0
	}
	return speed
}
