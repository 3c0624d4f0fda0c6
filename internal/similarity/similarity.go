// Package similarity implements the Ratcliff/Obershelp "gestalt pattern matching"
// ratio used to compare generated sentences with web search snippets.
package similarity

import "sort"

// Block is a run of identical runes: a[A:A+Size] == b[B:B+Size].
type Block struct {
	A    int
	B    int
	Size int
}

// Ratio returns 2*M / (len(a)+len(b)) where M is the number of runes covered by
// the matching blocks of a and b. The result is in [0, 1]; identical strings score
// 1.0 and strings with no rune in common score 0.0. Two empty strings score 1.0.
//
// Comparison is case-sensitive. Callers that want case-insensitive matching must
// fold case before calling.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	matched := 0
	for _, blk := range matchingBlocks(ra, rb) {
		matched += blk.Size
	}
	return 2.0 * float64(matched) / float64(total)
}

// MatchingBlocks returns the non-overlapping matching blocks of a and b ordered
// by their position in a. Offsets are rune offsets.
func MatchingBlocks(a, b string) []Block {
	return matchingBlocks([]rune(a), []rune(b))
}

func matchingBlocks(a, b []rune) []Block {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	// b2j maps each rune of b to the ascending list of indices where it occurs.
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	var blocks []Block

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		blk := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if blk.Size == 0 {
			continue
		}
		blocks = append(blocks, blk)

		if s.alo < blk.A && s.blo < blk.B {
			queue = append(queue, span{s.alo, blk.A, s.blo, blk.B})
		}
		if blk.A+blk.Size < s.ahi && blk.B+blk.Size < s.bhi {
			queue = append(queue, span{blk.A + blk.Size, s.ahi, blk.B + blk.Size, s.bhi})
		}
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].A != blocks[j].A {
			return blocks[i].A < blocks[j].A
		}
		return blocks[i].B < blocks[j].B
	})
	return blocks
}

// longestMatch finds the longest block shared by a[alo:ahi] and b[blo:bhi].
// Among equally long blocks the one starting earliest in a wins, and among those
// the one starting earliest in b.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) Block {
	best := Block{A: alo, B: blo}

	// j2len[j] is the length of the match ending at a[i-1] and b[j].
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.Size {
				best = Block{A: i - k + 1, B: j - k + 1, Size: k}
			}
		}
		j2len = next
	}
	return best
}
