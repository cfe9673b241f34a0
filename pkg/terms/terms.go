// Package terms picks the search term for a collage run.
package terms

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
)

//go:embed nouns.txt
var nouns string

// Picker draws terms from a fixed word list.
type Picker struct {
	words []string
}

// Default returns a picker over the embedded noun list.
func Default() *Picker {
	p, _ := Parse(strings.NewReader(nouns))
	return p
}

// FromFile loads one word per line. Blank lines and # comments are skipped.
func FromFile(path string) (*Picker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a word list.
func Parse(r io.Reader) (*Picker, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return &Picker{words: words}, nil
}

// Len returns the number of words.
func (p *Picker) Len() int { return len(p.words) }

// Pick returns a uniformly random word.
func (p *Picker) Pick(rng *rand.Rand) string {
	return p.words[rng.IntN(len(p.words))]
}
