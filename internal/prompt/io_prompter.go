// Package prompt reads interactive confirmations from the terminal.
package prompt

import (
	"bufio"
	"io"
	"strings"
)

const (
	affirmativeShortResponseConstant = "y"
	affirmativeLongResponseConstant  = "yes"
	applyAllShortResponseConstant    = "a"
	applyAllLongResponseConstant     = "all"
)

// ConfirmationResult captures a confirmation answer.
type ConfirmationResult struct {
	Confirmed  bool
	ApplyToAll bool
}

// ConfirmationPrompter asks the user to confirm an action.
type ConfirmationPrompter interface {
	Confirm(prompt string) (ConfirmationResult, error)
}

// IOConfirmationPrompter reads confirmation responses from an io.Reader.
type IOConfirmationPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewIOConfirmationPrompter constructs a prompter from the provided reader and writer.
func NewIOConfirmationPrompter(input io.Reader, output io.Writer) *IOConfirmationPrompter {
	return &IOConfirmationPrompter{reader: bufio.NewReader(input), writer: output}
}

// Confirm writes the prompt and interprets the response. "all" confirms and applies to later prompts.
func (prompter *IOConfirmationPrompter) Confirm(prompt string) (ConfirmationResult, error) {
	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return ConfirmationResult{}, writeError
		}
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil && readError != io.EOF {
		return ConfirmationResult{}, readError
	}

	switch strings.TrimSpace(strings.ToLower(response)) {
	case affirmativeShortResponseConstant, affirmativeLongResponseConstant:
		return ConfirmationResult{Confirmed: true}, nil
	case applyAllShortResponseConstant, applyAllLongResponseConstant:
		return ConfirmationResult{Confirmed: true, ApplyToAll: true}, nil
	default:
		return ConfirmationResult{}, nil
	}
}
