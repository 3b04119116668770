package eventlog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Recorder accumulates records in arrival order. When attached to a sink it
// additionally streams rows out in chunks, so long horizons do not have to
// buffer the full log in memory twice.
type Recorder struct {
	records []Record

	sink      *csv.Writer
	sinkFile  io.Closer
	buffered  int
	chunkSize int
}

// DefaultChunkSize is the number of rows buffered before a streaming flush.
const DefaultChunkSize = 4096

// NewRecorder creates an in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{chunkSize: DefaultChunkSize}
}

// StreamTo attaches a CSV streaming sink. The header row is written
// immediately; subsequent records are flushed every chunkSize rows.
func (r *Recorder) StreamTo(w io.Writer, chunkSize int) error {
	if chunkSize > 0 {
		r.chunkSize = chunkSize
	}
	r.sink = csv.NewWriter(w)
	if err := r.sink.Write(Header()); err != nil {
		return fmt.Errorf("eventlog: writing header: %w", err)
	}
	r.sink.Flush()
	if err := r.sink.Error(); err != nil {
		return fmt.Errorf("eventlog: writing header: %w", err)
	}
	return nil
}

// StreamToFile attaches a CSV streaming sink backed by a file, created or
// truncated. Close flushes and closes it.
func (r *Recorder) StreamToFile(path string, chunkSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eventlog: creating %s: %w", path, err)
	}
	r.sinkFile = f
	return r.StreamTo(f, chunkSize)
}

// Append adds one record. Records are append-only; Append never reorders or
// rewrites prior rows.
func (r *Recorder) Append(rec Record) {
	r.records = append(r.records, rec)
	if r.sink == nil {
		return
	}
	if err := r.sink.Write(row(rec)); err != nil {
		// A dead sink must not corrupt the run; the in-memory log stays
		// authoritative.
		return
	}
	r.buffered++
	if r.buffered >= r.chunkSize {
		r.sink.Flush()
		r.buffered = 0
	}
}

// Records returns the accumulated rows. The slice is the recorder's
// internal storage; callers must not modify it.
func (r *Recorder) Records() []Record {
	return r.records
}

// Len returns the number of accumulated records.
func (r *Recorder) Len() int { return len(r.records) }

// Close flushes the streaming sink, if any.
func (r *Recorder) Close() error {
	if r.sink != nil {
		r.sink.Flush()
		if err := r.sink.Error(); err != nil {
			return err
		}
	}
	if r.sinkFile != nil {
		return r.sinkFile.Close()
	}
	return nil
}

// WriteCSV writes the full log as CSV to w.
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, rec := range r.records {
		if err := cw.Write(row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the full log as a JSON array of row objects to w.
func (r *Recorder) WriteJSON(w io.Writer) error {
	type jsonRow struct {
		Time           float64 `json:"Time"`
		Resource       string  `json:"Resource"`
		State          string  `json:"State"`
		StateType      string  `json:"State Type"`
		Activity       string  `json:"Activity"`
		Product        string  `json:"Product"`
		ExpectedEnd    float64 `json:"Expected End Time"`
		TargetLocation string  `json:"Target Location"`
	}
	rows := make([]jsonRow, len(r.records))
	for i, rec := range r.records {
		rows[i] = jsonRow{
			Time:           rec.Time,
			Resource:       rec.Resource,
			State:          rec.State,
			StateType:      string(rec.StateType),
			Activity:       string(rec.Activity),
			Product:        rec.Product,
			ExpectedEnd:    rec.ExpectedEnd,
			TargetLocation: rec.TargetLocation,
		}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(rows)
}

func row(rec Record) []string {
	return []string{
		strconv.FormatFloat(rec.Time, 'f', -1, 64),
		rec.Resource,
		rec.State,
		string(rec.StateType),
		string(rec.Activity),
		rec.Product,
		strconv.FormatFloat(rec.ExpectedEnd, 'f', -1, 64),
		rec.TargetLocation,
	}
}
