// Package internal holds helpers shared by the lc3 packages.
package internal

import (
	"iter"
)

// MergeDefines concatenates define sequences. A name already yielded by an
// earlier sequence is skipped, so earlier sequences override later ones.
func MergeDefines(seqs ...iter.Seq2[string, string]) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		seen := map[string]bool{}
		for _, seq := range seqs {
			for name, value := range seq {
				if seen[name] {
					continue
				}
				seen[name] = true
				if !yield(name, value) {
					return // Stop if the consumer stops
				}
			}
		}
	}
}
