package capability

// FixedWidthChunker splits text into overlapping fixed-size windows,
// measured in runes so multi-byte characters are never split mid-rune.
type FixedWidthChunker struct {
	Size    int
	Overlap int
}

// NewFixedWidthChunker returns a chunker producing windows of size runes
// with overlap runes shared between consecutive windows. Overlap is
// clamped below size so chunking always makes forward progress.
func NewFixedWidthChunker(size, overlap int) *FixedWidthChunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &FixedWidthChunker{Size: size, Overlap: overlap}
}

func (c *FixedWidthChunker) Chunk(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return []Chunk{{Text: "", Index: 0, Chars: 0, Overlap: 0}}
	}

	stride := c.Size - c.Overlap
	var chunks []Chunk
	for start, idx := 0, 0; start < len(runes); start, idx = start+stride, idx+1 {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		overlap := c.Overlap
		if start == 0 {
			overlap = 0
		}
		chunks = append(chunks, Chunk{
			Text:    string(runes[start:end]),
			Index:   idx,
			Chars:   end - start,
			Overlap: overlap,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
