package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseSampleList extracts sample ids from a batch file. CSV files
// contribute their first column; anything else is treated as one sample id
// per line. Empty lines are skipped.
func ParseSampleList(r io.Reader, hasHeader bool) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample list: %w", err)
	}

	if bytes.Contains(data, []byte(",")) {
		return parseCSVList(bytes.NewReader(data), hasHeader)
	}
	return parsePlainList(bytes.NewReader(data), hasHeader)
}

func parseCSVList(r io.Reader, hasHeader bool) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var sampleIDs []string
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse sample list: %w", err)
		}
		if first && hasHeader {
			first = false
			continue
		}
		first = false
		if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
			sampleIDs = append(sampleIDs, strings.TrimSpace(row[0]))
		}
	}
	return sampleIDs, nil
}

func parsePlainList(r io.Reader, hasHeader bool) ([]string, error) {
	scanner := bufio.NewScanner(r)

	var sampleIDs []string
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first && hasHeader {
			first = false
			continue
		}
		first = false
		if line != "" {
			sampleIDs = append(sampleIDs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample list: %w", err)
	}
	return sampleIDs, nil
}
