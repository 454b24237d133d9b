// Package journal is the file-backed detection log: one JSON object per
// line, appended and never rewritten.  A detection's sequence id is its
// 1-based line number.  Readers only look at newline-terminated lines, so a
// reader racing a writer sees a clean prefix of the log.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/repository"
)

// record is the on-disk line format.
type record struct {
	Timestamp     string  `json:"timestamp"`
	CameraID      string  `json:"camera_id"`
	FrameNumber   int64   `json:"frame_number"`
	VehicleType   string  `json:"vehicle_type"`
	Confidence    float64 `json:"confidence"`
	BBoxX         float64 `json:"bbox_x"`
	BBoxY         float64 `json:"bbox_y"`
	BBoxWidth     float64 `json:"bbox_width"`
	BBoxHeight    float64 `json:"bbox_height"`
	ParkingSpotID *string `json:"parking_spot_id"`
	Occupied      bool    `json:"occupied"`
}

func toRecord(d model.VehicleDetection) record {
	return record{
		Timestamp:     d.Timestamp.UTC().Format(time.RFC3339Nano),
		CameraID:      d.CameraID,
		FrameNumber:   d.FrameNumber,
		VehicleType:   string(d.VehicleType),
		Confidence:    d.Confidence,
		BBoxX:         d.BBox.X,
		BBoxY:         d.BBox.Y,
		BBoxWidth:     d.BBox.Width,
		BBoxHeight:    d.BBox.Height,
		ParkingSpotID: d.ParkingSpotID,
		Occupied:      d.ParkingSpotID != nil,
	}
}

func (r record) detection(seq int64) (model.VehicleDetection, error) {
	ts, err := model.ParseTimestamp(r.Timestamp)
	if err != nil {
		return model.VehicleDetection{}, fmt.Errorf("line %d: bad timestamp %q", seq, r.Timestamp)
	}
	d := model.VehicleDetection{
		ID:            seq,
		Timestamp:     ts,
		CameraID:      r.CameraID,
		FrameNumber:   r.FrameNumber,
		VehicleType:   model.VehicleType(r.VehicleType),
		Confidence:    r.Confidence,
		BBox:          model.BBox{X: r.BBoxX, Y: r.BBoxY, Width: r.BBoxWidth, Height: r.BBoxHeight},
		ParkingSpotID: r.ParkingSpotID,
		Occupied:      r.ParkingSpotID != nil,
	}
	return d, nil
}

// ErrReadOnly is returned by Record on a log opened with OpenReader.
var ErrReadOnly = errors.New("journal opened read-only")

// Log is an append-only JSONL detection log.  Every append holds an
// exclusive advisory lock on the file, so writers in several processes
// interleave whole lines and each sees the true line count.  Within one
// process appends are also serialised by a mutex.  Reads open their own
// handle and take neither lock.
type Log struct {
	path string

	readOnly bool

	mu    sync.Mutex
	f     *os.File // nil for a reader or after Close
	size  int64    // bytes of the file already counted
	lines int64    // newlines in the first size bytes
	last  byte     // byte at size-1, '\n' for an empty file
}

// Open opens or creates the log at path for appending.  Nothing is
// written until the first Record.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, repository.Wrap("open", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, repository.Wrap("open", err)
	}
	return &Log{path: path, f: f, last: '\n'}, nil
}

// OpenReader returns a log that only reads path.  It never creates or
// modifies the file; a missing file reads as empty.
func OpenReader(path string) (*Log, error) {
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, repository.Wrap("open", err)
	}
	return &Log{path: path, readOnly: true, last: '\n'}, nil
}

func countLines(r io.Reader) (lines int64, last byte, err error) {
	buf := make([]byte, 64*1024)
	last = '\n'
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
		}
		if rerr == io.EOF {
			return lines, last, nil
		}
		if rerr != nil {
			return 0, 0, rerr
		}
	}
}

// Path returns the file the log reads and writes.
func (l *Log) Path() string { return l.path }

// sync brings size, lines and last up to date with whatever other writers
// appended since this handle last looked.  The caller holds the file lock.
func (l *Log) sync() error {
	fi, err := l.f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()
	if size < l.size {
		// Truncated or replaced underneath us.
		l.size, l.lines, l.last = 0, 0, '\n'
	}
	if size == l.size {
		return nil
	}
	n, last, err := countLines(io.NewSectionReader(l.f, l.size, size-l.size))
	if err != nil {
		return err
	}
	l.size, l.lines, l.last = size, l.lines+n, last
	return nil
}

// Record appends d and returns it with its sequence id, the line number it
// was written at.  Occupied is re-derived from ParkingSpotID before
// writing.  A line left unterminated by a writer that died mid-append is
// sealed first; it stays undecodable and keeps its line number.
func (l *Log) Record(ctx context.Context, d model.VehicleDetection) (model.VehicleDetection, error) {
	if err := ctx.Err(); err != nil {
		return model.VehicleDetection{}, repository.Wrap("append", err)
	}
	d.Timestamp = d.Timestamp.UTC().Truncate(time.Millisecond)
	d.Occupied = d.ParkingSpotID != nil
	line, err := json.Marshal(toRecord(d))
	if err != nil {
		return model.VehicleDetection{}, repository.Wrap("encode", err)
	}
	line = append(line, '\n')

	if l.readOnly {
		return model.VehicleDetection{}, repository.Wrap("append", ErrReadOnly)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return model.VehicleDetection{}, repository.Wrap("append", os.ErrClosed)
	}
	if err := lockFile(l.f); err != nil {
		return model.VehicleDetection{}, repository.Wrap("lock", err)
	}
	defer func() { _ = unlockFile(l.f) }()

	if err := l.sync(); err != nil {
		return model.VehicleDetection{}, repository.Wrap("append", err)
	}
	if l.last != '\n' {
		line = append([]byte{'\n'}, line...)
	}
	n, err := l.f.Write(line)
	if err != nil {
		// Whatever reached the file is counted by the next sync.
		return model.VehicleDetection{}, repository.Wrap("append", err)
	}
	l.size += int64(n)
	l.lines += int64(bytes.Count(line, []byte{'\n'}))
	l.last = '\n'
	d.ID = l.lines
	return d, nil
}

// Close releases the append handle.  Reads keep working.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Scan calls fn for every complete, decodable line in write order.  Lines
// that fail to decode are skipped but still consume a sequence number.
// Returning a non-nil error from fn stops the scan and returns that error.
func (l *Log) Scan(ctx context.Context, fn func(model.VehicleDetection) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return repository.Wrap("scan", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	var seq int64
	for {
		line, err := br.ReadBytes('\n')
		if err == io.EOF {
			// Anything left in line is an unfinished append.
			return nil
		}
		if err != nil {
			return repository.Wrap("scan", err)
		}
		seq++
		if seq%4096 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec record
		if json.Unmarshal(line, &rec) != nil {
			continue
		}
		d, derr := rec.detection(seq)
		if derr != nil {
			continue
		}
		if ferr := fn(d); ferr != nil {
			return ferr
		}
	}
}
