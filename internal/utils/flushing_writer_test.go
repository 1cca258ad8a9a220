package utils_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/patchpatch/internal/utils"
)

type failingFlusher struct {
	bytes.Buffer
}

func (writer *failingFlusher) Flush() error {
	return errors.New("flush failed")
}

func TestFlushingWriterFlushesBufferedTargets(testInstance *testing.T) {
	var destination bytes.Buffer
	buffered := bufio.NewWriter(&destination)

	bytesWritten, writeError := utils.NewFlushingWriter(buffered).Write([]byte("report"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, 6, bytesWritten)
	require.Equal(testInstance, "report", destination.String())
}

func TestFlushingWriterPassesThroughPlainTargets(testInstance *testing.T) {
	var destination bytes.Buffer

	_, writeError := utils.NewFlushingWriter(&destination).Write([]byte("line"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, "line", destination.String())
}

func TestFlushingWriterReportsFlushFailures(testInstance *testing.T) {
	target := &failingFlusher{}

	bytesWritten, writeError := utils.NewFlushingWriter(target).Write([]byte("data"))
	require.Error(testInstance, writeError)
	require.Equal(testInstance, 4, bytesWritten)
	require.Equal(testInstance, "data", target.String())
}
