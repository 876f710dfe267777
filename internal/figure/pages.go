package figure

// BytesPerPage is the size-based page estimate used when a report has no page count.
const BytesPerPage = 2048

// SplitPages divides text into page units. Form feeds are page breaks when present;
// otherwise the text is cut into totalPages roughly equal slices. The equal split is
// an approximation and says nothing about where real page boundaries fall.
func SplitPages(text string, totalPages int) []string {
	runes := []rune(text)
	var pages []string
	start := 0
	for i, r := range runes {
		if r == '\f' {
			pages = append(pages, string(runes[start:i]))
			start = i + 1
		}
	}
	if pages != nil {
		return append(pages, string(runes[start:]))
	}
	if totalPages <= 0 {
		totalPages = 1
	}
	size := (len(runes) + totalPages - 1) / totalPages
	out := make([]string, totalPages)
	for i := range out {
		lo, hi := i*size, (i+1)*size
		if lo > len(runes) {
			lo = len(runes)
		}
		if hi > len(runes) {
			hi = len(runes)
		}
		out[i] = string(runes[lo:hi])
	}
	return out
}

// EstimatePages returns ceil(sizeBytes/BytesPerPage).
func EstimatePages(sizeBytes int64) int {
	if sizeBytes <= 0 {
		return 0
	}
	return int((sizeBytes + BytesPerPage - 1) / BytesPerPage)
}
