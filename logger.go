package mealrecal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// RecalibrationLogger records each pipeline stage of a recalibration run.
type RecalibrationLogger interface {
	LogStage(stage StageLog) error
}

// NewRecalibrationLogFilePath returns a file path keyed by time and a cleaned up user id so logs
// for a given user are easy to find.
func NewRecalibrationLogFilePath(userID string) string {
	clean := strings.NewReplacer(":", "_", "/", "_", " ", "_").Replace(strings.ToLower(userID))
	return fmt.Sprintf("./logs/%d.%s.json", time.Now().Unix(), clean)
}

// StageLog represents a single stage of a recalibration run
type StageLog struct {
	Stage     string        `json:"stage"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"user_id"`
	Day       string        `json:"day,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Detail    any           `json:"detail,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// FileRecalibrationLogger accumulates stages and writes them out on Flush
type FileRecalibrationLogger struct {
	mu     sync.Mutex
	stages []StageLog
	writer io.Writer
}

// NewFileRecalibrationLogger creates a new file-based recalibration logger
func NewFileRecalibrationLogger(writer io.Writer) *FileRecalibrationLogger {
	return &FileRecalibrationLogger{
		stages: make([]StageLog, 0),
		writer: writer,
	}
}

// LogStage buffers the stage (does not flush immediately)
func (l *FileRecalibrationLogger) LogStage(stage StageLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
	return nil
}

// Flush writes all accumulated stages to the writer
func (l *FileRecalibrationLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"recalibration_session": map[string]any{
			"timestamp": time.Now(),
			"stages":    l.stages,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recalibration log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write recalibration log: %w", err)
	}

	l.stages = l.stages[:0]
	return nil
}

// NoOpRecalibrationLogger discards all stage entries
type NoOpRecalibrationLogger struct{}

func NewNoOpRecalibrationLogger() *NoOpRecalibrationLogger {
	return &NoOpRecalibrationLogger{}
}

func (nop *NoOpRecalibrationLogger) LogStage(stage StageLog) error {
	return nil
}

// StdoutRecalibrationLogger logs each stage as a JSON line (for Lambda/CloudWatch)
type StdoutRecalibrationLogger struct {
	out io.Writer
}

// NewStdoutRecalibrationLogger creates a logger writing to os.Stdout
func NewStdoutRecalibrationLogger() *StdoutRecalibrationLogger {
	return &StdoutRecalibrationLogger{out: os.Stdout}
}

// LogStage writes the stage as a single JSON line
func (l *StdoutRecalibrationLogger) LogStage(stage StageLog) error {
	data, err := json.Marshal(stage)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
