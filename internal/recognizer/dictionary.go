package recognizer

import (
	"bufio"
	"fmt"
	"os"
)

// Charset maps CTC class indices to characters. Index 0 is the blank token;
// dictionary entries start at index 1.
type Charset struct {
	chars []string
}

// LoadCharset reads a dictionary file with one character per line.
func LoadCharset(path string) (*Charset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	var chars []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		chars = append(chars, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("dictionary is empty: %s", path)
	}
	return &Charset{chars: chars}, nil
}

// Size returns the number of characters, excluding the blank token.
func (c *Charset) Size() int { return len(c.chars) }

// Char returns the character for a CTC class index, or "" for blank and
// out-of-range indices.
func (c *Charset) Char(index int) string {
	if index <= 0 || index > len(c.chars) {
		return ""
	}
	return c.chars[index-1]
}

// greedyCTCDecode collapses a per-timestep class probability matrix
// (timesteps x numClasses, row-major) into text plus the mean probability of
// the emitted characters. Repeated classes collapse; blanks separate runs.
func greedyCTCDecode(logits []float32, timesteps, numClasses int, charset *Charset) (string, float64) {
	if timesteps <= 0 || numClasses <= 0 || len(logits) < timesteps*numClasses {
		return "", 0
	}

	var text []byte
	var probSum float64
	var emitted int
	prev := -1

	for t := range timesteps {
		row := logits[t*numClasses : (t+1)*numClasses]
		best := 0
		bestProb := row[0]
		for i := 1; i < numClasses; i++ {
			if row[i] > bestProb {
				best = i
				bestProb = row[i]
			}
		}
		if best != 0 && best != prev {
			text = append(text, charset.Char(best)...)
			probSum += float64(bestProb)
			emitted++
		}
		prev = best
	}

	if emitted == 0 {
		return "", 0
	}
	return string(text), probSum / float64(emitted)
}
