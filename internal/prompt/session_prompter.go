package prompt

// SessionPrompter remembers an apply-to-all answer and confirms every later prompt without asking.
type SessionPrompter struct {
	basePrompter ConfirmationPrompter
	assumeYes    bool
}

// NewSessionPrompter wraps base. When assumeYes is true no prompt is ever shown.
func NewSessionPrompter(base ConfirmationPrompter, assumeYes bool) *SessionPrompter {
	return &SessionPrompter{basePrompter: base, assumeYes: assumeYes}
}

// Confirm asks the wrapped prompter unless an earlier answer applied to all prompts.
func (prompter *SessionPrompter) Confirm(prompt string) (ConfirmationResult, error) {
	if prompter.assumeYes {
		return ConfirmationResult{Confirmed: true}, nil
	}
	if prompter.basePrompter == nil {
		return ConfirmationResult{}, nil
	}

	result, confirmError := prompter.basePrompter.Confirm(prompt)
	if confirmError != nil {
		return ConfirmationResult{}, confirmError
	}
	if result.ApplyToAll {
		prompter.assumeYes = true
	}
	return result, nil
}
