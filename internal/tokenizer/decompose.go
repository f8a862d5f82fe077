package tokenizer

// piece is a byte range of a normalized word. known pieces are vocabulary
// entries; unknown pieces are single runes nothing in the vocabulary covers.
type piece struct {
	start, end int
	known      bool
}

// segment splits word into pieces by greedy longest-prefix match. The scan at
// each position starts at the longest entry length the vocabulary holds, so a
// word costs O(runes * MaxPieceLen) lookups. Every rune lands in exactly one
// piece and the loop advances at least one rune per step.
func (v *Vocabulary) segment(word string, dst []piece) []piece {
	if word == "" {
		return dst
	}

	offs := make([]int, 0, len(word)+1)
	for i := range word {
		offs = append(offs, i)
	}
	offs = append(offs, len(word))
	n := len(offs) - 1

	for i := 0; i < n; {
		matched := 0
		for l := min(n-i, v.maxPieceLen); l >= 1; l-- {
			if _, ok := v.ranks[word[offs[i]:offs[i+l]]]; ok {
				matched = l
				break
			}
		}

		if matched == 0 {
			dst = append(dst, piece{start: offs[i], end: offs[i+1]})
			i++
			continue
		}

		dst = append(dst, piece{start: offs[i], end: offs[i+matched], known: true})
		i += matched
	}

	return dst
}

// decompose appends the tokens for an already normalized word to dst.
func (e *Encoder) decompose(word string, dst []string) []string {
	pieces := e.vocab.segment(word, nil)

	for i := 0; i < len(pieces); i++ {
		p := pieces[i]
		if p.known {
			dst = append(dst, word[p.start:p.end])
			continue
		}

		end := p.end
		if e.mergeUnknown {
			for i+1 < len(pieces) && !pieces[i+1].known {
				i++
				end = pieces[i].end
			}
		}

		if e.charFallback {
			dst = append(dst, word[p.start:end])
		} else {
			dst = append(dst, e.unknownToken)
		}
	}

	return dst
}
