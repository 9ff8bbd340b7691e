package extract

// DefaultChunkSize is the character budget per extraction chunk. Chunking is
// independent of page boundaries: a chunk may span pages or end mid-page.
const DefaultChunkSize = 12000

// Splitter cuts a document into order-preserving, size-bounded chunks.
type Splitter struct {
	Size int
}

// Split returns the chunks of text in order. Breaks prefer the last line or
// word boundary inside the budget so a chunk rarely cuts a token in half;
// a boundary is only honored when it lands past half the budget.
func (s Splitter) Split(text string) []string {
	size := s.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := end
		window := runes[start:end]
		if at := lastRune(window, '\n'); at > size/2 {
			cut = start + at + 1
		} else if at := lastRune(window, ' '); at > size/2 {
			cut = start + at + 1
		}
		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

// lastRune is the rune-index counterpart of strings.LastIndexByte, so the
// half-budget guard compares like with like on multibyte text.
func lastRune(window []rune, r rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == r {
			return i
		}
	}
	return -1
}
