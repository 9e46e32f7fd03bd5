package characteriser

import (
	"math"
)

// pslDims is the length of a spatial-locality vector: entry 0 is the entropy
// over full addresses, entries 1..10 over addresses coarsened by that many
// bits.
const pslDims = 11

// addressEntropy turns an address histogram into a pslDims-long entropy
// vector. Probabilities are normalised by total+1, matching the smoothing the
// parallel-spatial-locality measure is defined with.
func addressEntropy(histogram map[uint64]uint32) [pslDims]float64 {
	var result [pslDims]float64

	coarse := make([]map[uint64]uint32, pslDims)
	coarse[0] = histogram
	for nskip := 1; nskip < pslDims; nskip++ {
		coarse[nskip] = make(map[uint64]uint32)
	}

	total := uint64(0)
	for addr, count := range histogram {
		for nskip := 1; nskip < pslDims; nskip++ {
			coarse[nskip][addr>>uint(nskip)] += count
		}
		total += uint64(count)
	}

	if total == 0 {
		return result
	}

	for nskip := 0; nskip < pslDims; nskip++ {
		e := 0.0
		for _, count := range coarse[nskip] {
			prob := float64(count) / float64(total+1)
			e -= prob * math.Log2(prob)
		}
		result[nskip] = e
	}

	return result
}

// parallelSpatialLocality walks the ledger timestep by timestep: at step t it
// histograms the addresses every work-item touched at its t-th access, takes
// the entropy vector of that histogram, and averages the vectors across
// timesteps with a T+1 denominator.
func parallelSpatialLocality(slots [][]ledgerElement) [pslDims]float64 {
	maxLen := 0
	for i := range slots {
		if len(slots[i]) > maxLen {
			maxLen = len(slots[i])
		}
	}

	entropies := make([][pslDims]float64, maxLen)
	histogram := make(map[uint64]uint32)
	for t := 0; t < maxLen; t++ {
		for k := range histogram {
			delete(histogram, k)
		}
		for j := range slots {
			if t >= len(slots[j]) {
				continue
			}
			histogram[slots[j][t].Address]++
		}
		entropies[t] = addressEntropy(histogram)
	}

	var psl [pslDims]float64
	for i := 0; i < pslDims; i++ {
		for t := range entropies {
			psl[i] += entropies[t][i]
		}
		psl[i] /= float64(len(entropies)) + 1
	}
	return psl
}
