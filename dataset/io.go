package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadJSON reads a file holding a single JSON array.
func ReadJSON[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []T
	if err := json.NewDecoder(f).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return items, nil
}

// WriteJSON writes items as one JSON array, replacing the file.
func WriteJSON[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSONL reads one JSON value per line. Blank lines are skipped.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return DecodeJSONL[T](f)
}

// DecodeJSONL reads JSON lines from r.
func DecodeJSONL[T any](r io.Reader) ([]T, error) {
	var items []T
	scanner := bufio.NewScanner(r)
	// Sections of some acts run to tens of kilobytes per line.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}

// WriteJSONL writes one JSON value per line, replacing the file.
func WriteJSONL[T any](path string, items []T) error {
	return writeJSONL(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, items)
}

// AppendJSONL appends one JSON value per line, creating the file if needed.
func AppendJSONL[T any](path string, items []T) error {
	return writeJSONL(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, items)
}

func writeJSONL[T any](path string, flag int, items []T) error {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, item := range items {
		data, err := marshal(item)
		if err != nil {
			f.Close()
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
