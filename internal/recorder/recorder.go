// Package recorder archives every !live aggregation as JSON lines, one file
// per source, rotated by age and size.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/metrics"
	"github.com/john/commander/internal/source"
)

// FileTimeLayout is the timestamp embedded in archive file names.
const FileTimeLayout = "20060102_150405"

// Snapshot is one source's listing at the time of an aggregation.
type Snapshot struct {
	Timestamp string                `json:"timestamp"` // RFC3339, UTC
	Source    string                `json:"source"`
	OK        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	Count     int                   `json:"count"`
	Records   []source.StreamRecord `json:"records"`
}

// fileWriter manages a single JSONL file
type fileWriter struct {
	file         *os.File
	writer       *bufio.Writer
	createdAt    time.Time
	bytesWritten int64
	buffer       []Snapshot
	source       string
	filename     string
}

// Recorder buffers snapshots and writes them to disk
type Recorder struct {
	outputDir    string
	bufferSize   int
	rotateAfter  time.Duration
	rotateBytes  int64
	clock        clockwork.Clock
	incoming     chan Snapshot
	currentFiles map[string]*fileWriter // key: source id
	mu           sync.Mutex
}

// New creates a new recorder
func New(outputDir string, bufferSize, rotateMinutes, rotateMegabytes int, clock clockwork.Clock) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Recorder{
		outputDir:    outputDir,
		bufferSize:   bufferSize,
		rotateAfter:  time.Duration(rotateMinutes) * time.Minute,
		rotateBytes:  int64(rotateMegabytes) * 1024 * 1024,
		clock:        clock,
		incoming:     make(chan Snapshot, 64),
		currentFiles: make(map[string]*fileWriter),
	}
}

// Record queues one snapshot per result. It never blocks the caller; when the
// queue is full the snapshot is dropped.
func (r *Recorder) Record(results []source.Result) {
	now := r.clock.Now().UTC().Format(time.RFC3339)
	for _, res := range results {
		snap := Snapshot{
			Timestamp: now,
			Source:    res.Source.ID,
			OK:        res.OK(),
			Count:     len(res.Records),
			Records:   res.Records,
		}
		if res.Err != nil {
			snap.Error = res.Err.Error()
		}
		select {
		case r.incoming <- snap:
		default:
			logging.Component("recorder").Warn().Str(logging.FieldSource, snap.Source).Msg("Snapshot queue full, dropping snapshot")
		}
	}
}

// Start writes queued snapshots until ctx is cancelled. Closed files are sent
// on fileChan for upload.
func (r *Recorder) Start(ctx context.Context, fileChan chan<- string) error {
	log := logging.Component("recorder")

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ticker := r.clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case snap := <-r.incoming:
			if err := r.write(snap); err != nil {
				log.Error().Err(err).Msg("Error recording snapshot")
			}

		case <-ticker.Chan():
			r.checkRotation(fileChan)

		case <-ctx.Done():
			log.Info().Msg("Recorder shutting down, flushing buffers...")
			r.drain()
			r.flushAll(fileChan)
			return ctx.Err()
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case snap := <-r.incoming:
			if err := r.write(snap); err != nil {
				logging.Component("recorder").Error().Err(err).Msg("Error recording snapshot")
			}
		default:
			return
		}
	}
}

func (r *Recorder) write(snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fw := r.currentFiles[snap.Source]
	if fw == nil {
		var err error
		fw, err = r.createFileWriter(snap.Source)
		if err != nil {
			return fmt.Errorf("create file writer: %w", err)
		}
		r.currentFiles[snap.Source] = fw
	}

	fw.buffer = append(fw.buffer, snap)
	if len(fw.buffer) >= r.bufferSize {
		if err := fw.flush(); err != nil {
			return fmt.Errorf("flush buffer: %w", err)
		}
	}
	metrics.SnapshotsRecorded.Inc()
	return nil
}

func (r *Recorder) createFileWriter(sourceID string) (*fileWriter, error) {
	now := r.clock.Now()
	filename := fmt.Sprintf("%s_%s.jsonl", sourceID, now.UTC().Format(FileTimeLayout))

	file, err := os.OpenFile(filepath.Join(r.outputDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	logging.Component("recorder").Info().Str("file", filename).Msg("Created new snapshot file")

	return &fileWriter{
		file:      file,
		writer:    bufio.NewWriter(file),
		createdAt: now,
		buffer:    make([]Snapshot, 0, r.bufferSize),
		source:    sourceID,
		filename:  filename,
	}, nil
}

// flush writes buffered snapshots to disk
func (fw *fileWriter) flush() error {
	for _, snap := range fw.buffer {
		data, err := json.Marshal(snap)
		if err != nil {
			logging.Component("recorder").Error().Err(err).Msg("Error marshaling snapshot")
			continue
		}
		n, err := fw.writer.Write(append(data, '\n'))
		fw.bytesWritten += int64(n)
		if err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	fw.buffer = fw.buffer[:0]
	return fw.writer.Flush()
}

func (fw *fileWriter) close() {
	log := logging.Component("recorder")
	if err := fw.flush(); err != nil {
		log.Error().Err(err).Str("file", fw.filename).Msg("Error flushing file")
	}
	if err := fw.file.Close(); err != nil {
		log.Error().Err(err).Str("file", fw.filename).Msg("Error closing file")
	}
}

// checkRotation closes files past their age or size limit
func (r *Recorder) checkRotation(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logging.Component("recorder")
	now := r.clock.Now()
	for key, fw := range r.currentFiles {
		switch {
		case r.rotateAfter > 0 && now.Sub(fw.createdAt) >= r.rotateAfter:
			log.Info().Str("file", fw.filename).Msg("Rotating file (time limit)")
		case r.rotateBytes > 0 && fw.bytesWritten >= r.rotateBytes:
			log.Info().Str("file", fw.filename).Msg("Rotating file (size limit)")
		default:
			continue
		}
		r.closeFile(fw, fileChan)
		delete(r.currentFiles, key)
	}
}

func (r *Recorder) closeFile(fw *fileWriter, fileChan chan<- string) {
	fw.close()
	path := filepath.Join(r.outputDir, fw.filename)
	select {
	case fileChan <- path:
		logging.Component("recorder").Info().Str("file", fw.filename).Msg("Queued file for upload")
	default:
		logging.Component("recorder").Warn().Str("file", fw.filename).Msg("Upload queue full, file will be uploaded on next start")
	}
}

// flushAll flushes and closes every open file
func (r *Recorder) flushAll(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, fw := range r.currentFiles {
		r.closeFile(fw, fileChan)
		delete(r.currentFiles, key)
	}
	logging.Component("recorder").Info().Msg("All files flushed and closed")
}
