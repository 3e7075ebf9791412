package histogram

// Bins is the number of levels in an 8-bit histogram.
const Bins = 256

// Histogram counts pixels per 8-bit level.
type Histogram [Bins]int

// Build counts every value in pix.
func Build(pix []uint8) Histogram {
	var h Histogram
	for _, v := range pix {
		h[v]++
	}
	return h
}

// Total returns the number of samples counted.
func (h *Histogram) Total() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// Mean returns the average level, or 0 for an empty histogram.
func (h *Histogram) Mean() float64 {
	total := 0
	sum := 0.0
	for i, count := range h {
		total += count
		sum += float64(i) * float64(count)
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

// Occupied counts the levels holding at least one sample.
func (h *Histogram) Occupied() int {
	n := 0
	for _, count := range h {
		if count > 0 {
			n++
		}
	}
	return n
}
