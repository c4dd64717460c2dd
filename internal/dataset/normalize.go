package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ZScoreChannels normalizes a channel-first buffer in place. data holds
// channels consecutive planes of plane elements each.
//
// Each plane is shifted to zero mean and, when its population standard
// deviation is positive, scaled to unit deviation. A constant plane becomes
// all zeros.
func ZScoreChannels(data []float32, channels, plane int) {
	if channels <= 0 || plane <= 0 || len(data) != channels*plane {
		panic(fmt.Sprintf("zscore: %d values do not split into %d channels of %d", len(data), channels, plane))
	}

	buf := make([]float64, plane)
	for c := range channels {
		ch := data[c*plane : (c+1)*plane]
		for i, v := range ch {
			buf[i] = float64(v)
		}

		if floats.Min(buf) == floats.Max(buf) {
			clear(ch)
			continue
		}

		mean, std := stat.PopMeanStdDev(buf, nil)
		if std > 0 {
			for i, v := range buf {
				ch[i] = float32((v - mean) / std)
			}
		} else {
			for i, v := range buf {
				ch[i] = float32(v - mean)
			}
		}
	}
}

// ChannelStats returns the population mean and standard deviation of each
// plane of a channel-first buffer.
func ChannelStats(data []float32, channels, plane int) (means, stds []float64) {
	if channels <= 0 || plane <= 0 || len(data) != channels*plane {
		panic(fmt.Sprintf("channel stats: %d values do not split into %d channels of %d", len(data), channels, plane))
	}

	means = make([]float64, channels)
	stds = make([]float64, channels)
	buf := make([]float64, plane)
	for c := range channels {
		for i, v := range data[c*plane : (c+1)*plane] {
			buf[i] = float64(v)
		}
		means[c], stds[c] = stat.PopMeanStdDev(buf, nil)
	}
	return means, stds
}
