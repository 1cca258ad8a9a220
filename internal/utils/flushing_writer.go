package utils

import "io"

type flusher interface {
	Flush() error
}

type flushingWriter struct {
	target io.Writer
}

// NewFlushingWriter returns a writer that flushes the target after every write when the target supports flushing.
func NewFlushingWriter(target io.Writer) io.Writer {
	return flushingWriter{target: target}
}

// Write forwards data to the target and flushes it.
func (writer flushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.target.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if targetFlusher, flushable := writer.target.(flusher); flushable {
		if flushError := targetFlusher.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}
	return bytesWritten, nil
}
