package language

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

// arpaZero is the conventional log10 value for a zero probability.
const arpaZero = -99

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	model := NewNGramModel(0)

	// Skip until \data\ section
	found := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "\\data\\" {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("arpa: missing \\data\\ section")
	}

	// Parse ngram counts
	counts := map[int]int{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ngram ") {
			parts := strings.SplitN(line[6:], "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("arpa: bad count line %q", line)
			}
			order, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, fmt.Errorf("arpa: bad count line %q: %w", line, err)
			}
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("arpa: bad count line %q: %w", line, err)
			}
			counts[order] = n
			model.grow(order)
			continue
		}
		break
	}

	// Parse n-gram sections
	for {
		line := strings.TrimSpace(scanner.Text())

		if line == "\\end\\" {
			break
		}

		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, ":") {
			// e.g., \1-grams:
			orderStr := strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:")
			order, err := strconv.Atoi(orderStr)
			if err != nil {
				return nil, fmt.Errorf("arpa: bad section header %q", line)
			}

			more := false
			for scanner.Scan() {
				entry := strings.TrimSpace(scanner.Text())
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "\\") {
					more = true
					break
				}
				if err := parseNGramLine(model, order, entry); err != nil {
					return nil, fmt.Errorf("parse n-gram line %q: %w", entry, err)
				}
			}
			if !more {
				break
			}
			continue
		}

		if !scanner.Scan() {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for order, n := range counts {
		if order <= len(model.Entries) && len(model.Entries[order-1]) != n {
			return nil, fmt.Errorf("arpa: header declares %d %d-grams, found %d", n, order, len(model.Entries[order-1]))
		}
	}

	return model, nil
}

// LoadARPAFile is a convenience wrapper that opens a file path.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadARPA(f)
}

func toLn(log10 float64) float64 {
	if log10 <= arpaZero {
		return mathutil.LogZero
	}
	// Convert base-10 to natural log
	return log10 * math.Ln10
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return fmt.Errorf("too few fields for %d-gram: %q", order, line)
	}

	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}

	e := Entry{
		Words:   append([]string(nil), fields[1:order+1]...),
		LogProb: toLn(logProb),
	}
	if len(fields) > order+1 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		e.LogBackoff = toLn(bo)
		e.HasBackoff = true
	}
	model.Add(e)
	return nil
}
