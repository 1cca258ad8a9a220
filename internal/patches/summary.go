package patches

// PairReport describes the outcome of one commit pair.
type PairReport struct {
	SourceCommit string `yaml:"source_commit"`
	TargetCommit string `yaml:"target_commit"`
	PatchPath    string `yaml:"patch_path"`
	WorkStatus   string `yaml:"work_status"`
	Committed    bool   `yaml:"committed"`
	Attempts     int    `yaml:"attempts"`
	LastError    string `yaml:"last_error,omitempty"`
}

// RunSummary collects the pair reports of a rewrite.
type RunSummary struct {
	WorkBranch string       `yaml:"work_branch"`
	Pairs      []PairReport `yaml:"pairs"`
}

// FailedPairs returns the pairs whose last failure was never resolved.
func (summary RunSummary) FailedPairs() []PairReport {
	failed := make([]PairReport, 0)
	for _, pair := range summary.Pairs {
		if len(pair.LastError) > 0 {
			failed = append(failed, pair)
		}
	}
	return failed
}

// CommittedCount returns the number of pairs recorded on the work branch.
func (summary RunSummary) CommittedCount() int {
	count := 0
	for _, pair := range summary.Pairs {
		if pair.Committed {
			count++
		}
	}
	return count
}

func newPairReport(document *Document, outcome commitOutcome) PairReport {
	report := PairReport{
		SourceCommit: document.SourceCommit(),
		TargetCommit: document.TargetCommit(),
		PatchPath:    document.Path(),
		WorkStatus:   document.WorkStatus().String(),
		Committed:    outcome.committed,
		Attempts:     outcome.attempts,
	}
	if failure := document.LastError(); failure != nil {
		report.LastError = failure.Error()
	}
	return report
}
