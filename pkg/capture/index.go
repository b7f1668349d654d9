package capture

import (
	"Go2NetPeriod/internal/model"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedIndex is returned when a period index row is invalid.
var ErrMalformedIndex = errors.New("malformed period index")

var indexRow = regexp.MustCompile(`^(\d+) (\d+) (.*)$`)

// LoadIndex reads a period index file and validates it against recordCount.
func LoadIndex(path string, recordCount int) ([]model.Period, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open period index: %w", err)
	}
	defer file.Close()

	periods, err := ReadIndex(file, recordCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read period index '%s': %w", path, err)
	}
	return periods, nil
}

// ReadIndex parses rows of the form "start end label". Indices are 1-based and inclusive;
// every period must satisfy 1 <= start < end <= recordCount. Blank lines are ignored.
func ReadIndex(r io.Reader, recordCount int) ([]model.Period, error) {
	var periods []model.Period
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		m := indexRow.FindStringSubmatch(text)
		if m == nil {
			return nil, fmt.Errorf("%w: line %d: expected \"start end label\"", ErrMalformedIndex, line)
		}
		start, err1 := strconv.Atoi(m[1])
		end, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: line %d: index out of integer range", ErrMalformedIndex, line)
		}
		p := model.Period{Start: start, End: end, Label: m[3]}
		if err := p.Validate(recordCount); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedIndex, line, err)
		}
		periods = append(periods, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan period index: %w", err)
	}
	return periods, nil
}
