package captions

import (
	"fmt"
	"strings"
)

// Style controls how captions are drawn.
type Style struct {
	FontSize int
	FontFile string
}

// DrawText renders the drawtext filter for one word. The output depends only
// on the word and style, so batching never changes what is drawn.
func DrawText(word Word, style Style) string {
	size := style.FontSize
	if size <= 0 {
		size = 48
	}
	var b strings.Builder
	b.WriteString("drawtext=")
	if style.FontFile != "" {
		fmt.Fprintf(&b, "fontfile='%s':", strings.ReplaceAll(style.FontFile, "'", ""))
	}
	fmt.Fprintf(&b, "text='%s':enable='between(t,%s,%s)'", Sanitize(word.Text), trim(word.Start), trim(word.End))
	fmt.Fprintf(&b, ":fontsize=%d:fontcolor=white:borderw=3:bordercolor=black:x=(w-text_w)/2:y=h*0.8-text_h", size)
	return b.String()
}

// Filters renders one drawtext filter per word.
func Filters(words []Word, style Style) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, DrawText(w, style))
	}
	return out
}

// Batch splits words into groups of at most size words. size <= 0 yields
// a single batch.
func Batch(words []Word, size int) [][]Word {
	if len(words) == 0 {
		return nil
	}
	if size <= 0 || size >= len(words) {
		return [][]Word{words}
	}
	var batches [][]Word
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		batches = append(batches, words[start:end])
	}
	return batches
}

func trim(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
