package voice

import "strings"

// maxChunkChars is the submission ceiling for the async job engine. Hosted
// TTS models degrade (or hard-fail) past roughly this length, so longer text
// is split at sentence boundaries below it, never mid-sentence.
const maxChunkChars = 450

// splitSentences breaks text into trimmed sentences, keeping terminal
// punctuation. A terminator only ends a sentence when followed by a space or
// end of text, so decimals and versions like "v2.1" stay intact.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// chunkText groups whole sentences into chunks of at most maxChars. A single
// sentence longer than maxChars becomes its own oversized chunk rather than
// being cut in the middle.
func chunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, sentence := range splitSentences(text) {
		if cur.Len() > 0 && cur.Len()+1+len(sentence) > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
