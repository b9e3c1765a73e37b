package records

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var ErrEmptyPath = errors.New("empty file path")

// ArrayWriter streams records into a JSON array file. Every element is
// written through to the file as soon as it is appended, so a crash
// leaves all records up to the last one on disk.
type ArrayWriter struct {
	f     *os.File
	count int
}

func NewArrayWriter(path string, appendMode bool) (*ArrayWriter, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString("[\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return &ArrayWriter{f: f}, nil
}

func (w *ArrayWriter) Append(rec *Record) error {
	data, err := rec.MarshalIndented()
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	if w.count > 0 {
		if _, err := w.f.WriteString(",\n"); err != nil {
			return err
		}
	}
	if _, err := w.f.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *ArrayWriter) Count() int {
	return w.count
}

func (w *ArrayWriter) Close() error {
	closing := "]\n"
	if w.count > 0 {
		closing = "\n]\n"
	}
	if _, err := w.f.WriteString(closing); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// WriteArrayFile writes recs as a single JSON array. With dedupe set,
// only the first record of each id is kept.
func WriteArrayFile(path string, recs []*Record, dedupe bool, appendMode bool) error {
	if dedupe {
		recs = lo.UniqBy(recs, func(r *Record) string {
			return r.ID
		})
	}
	w, err := NewArrayWriter(path, appendMode)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := w.Append(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteJSONL writes one compact record per line.
func WriteJSONL(path string, recs []*Record) error {
	if path == "" {
		return ErrEmptyPath
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads every record from a file holding one or more
// concatenated JSON arrays, as produced by append mode.
func LoadFile(path string) ([]*Record, error) {
	return loadFile(path, false)
}

// RecoverFile is like LoadFile but tolerates a truncated trailing array,
// returning every record that was completely written.
func RecoverFile(path string) ([]*Record, error) {
	return loadFile(path, true)
}

func loadFile(path string, lenient bool) ([]*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := decodeArrays(json.NewDecoder(bufio.NewReader(f)), lenient)
	if err != nil {
		return recs, fmt.Errorf("decoding %s: %w", path, err)
	}
	return recs, nil
}

func decodeArrays(dec *json.Decoder, lenient bool) ([]*Record, error) {
	var recs []*Record
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return recs, fmt.Errorf("expected a JSON array, got %v", tok)
		}
		for dec.More() {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				if lenient {
					log.Warnf("stopping at truncated record after %d records: %s", len(recs), err)
					return recs, nil
				}
				return recs, err
			}
			recs = append(recs, &rec)
		}
		if _, err := dec.Token(); err != nil {
			if lenient {
				log.Warnf("array not closed after %d records: %s", len(recs), err)
				return recs, nil
			}
			return recs, err
		}
	}
}

// LoadDataset loads records and clears any previous predictions.
func LoadDataset(path string) ([]*Record, error) {
	recs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.PredictOutput = map[string]any{}
		rec.LLMResponse = nil
		rec.Model = nil
	}
	return recs, nil
}

// LoadIDs reads one id per line, skipping blank lines.
func LoadIDs(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimRight(scanner.Text(), "\r\n")
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}

// FilterByIDs keeps the records whose id is listed, preserving order.
func FilterByIDs(recs []*Record, ids []string) []*Record {
	wanted := lo.SliceToMap(ids, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	return lo.Filter(recs, func(r *Record, _ int) bool {
		_, ok := wanted[r.ID]
		return ok
	})
}
