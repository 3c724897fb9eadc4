package visits

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrTooLarge is returned when the packed log cannot fit the size limit
// even after pruning.
var ErrTooLarge = errors.New("visits: packed log exceeds size limit")

// Pack serializes the log to a compact string (JSON, gzip, base64) fit for
// a user-option value.
func (l *Log) Pack() (string, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("visits: marshal: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("visits: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("visits: compress: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Unpack reverses Pack. An empty string yields an empty log.
func Unpack(s string) (*Log, error) {
	if s == "" {
		return NewLog(), nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("visits: decode: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("visits: decompress: %w", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("visits: decompress: %w", err)
	}
	l := NewLog()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("visits: unmarshal: %w", err)
	}
	if l.Pages == nil {
		l.Pages = map[string][]int64{}
	}
	return l, nil
}

// PackWithin packs the log, pruning the oldest timestamps across all pages
// (not just one) when the result exceeds limit bytes, retrying with an
// escalating fraction. The log is mutated by pruning.
func (l *Log) PackWithin(limit int) (string, error) {
	for _, frac := range []float64{0, 0.1, 0.2, 0.4, 0.8} {
		if frac > 0 {
			l.dropOldestFraction(frac)
		}
		s, err := l.Pack()
		if err != nil {
			return "", err
		}
		if len(s) <= limit {
			return s, nil
		}
	}
	return "", ErrTooLarge
}

// dropOldestFraction removes the oldest frac of all timestamps, page-wide.
// Pages left empty are deleted.
func (l *Log) dropOldestFraction(frac float64) {
	var all []int64
	for _, v := range l.Pages {
		all = append(all, v...)
	}
	if len(all) == 0 {
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	idx := int(float64(len(all)) * frac)
	if idx >= len(all) {
		idx = len(all) - 1
	}
	threshold := all[idx]

	for page, v := range l.Pages {
		kept := v[:0]
		for _, ts := range v {
			if ts >= threshold {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.Pages, page)
			continue
		}
		l.Pages[page] = kept
	}
}
