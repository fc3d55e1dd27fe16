package types

// Metrics is a snapshot of the orchestrator's periodic progress counters.
type Metrics struct {
	ActiveWorkers           int64
	PendingTasks            int64
	CompletedTasks          int64
	FailedTasks             int64
	CommitsPerHour          float64
	TotalTokensUsed         int64
	EstimatedInFlightTokens int64
	TotalMerged             int64
	TotalMergeFailed        int64
	TotalConflicts          int64
	MergeQueueDepth         int64
}

// MetricsFromData reads the metrics counters out of a record's data. Missing counters are zero.
func MetricsFromData(d Data) Metrics {
	return Metrics{
		ActiveWorkers:           d.Int("activeWorkers"),
		PendingTasks:            d.Int("pendingTasks"),
		CompletedTasks:          d.Int("completedTasks"),
		FailedTasks:             d.Int("failedTasks"),
		CommitsPerHour:          d.Float("commitsPerHour"),
		TotalTokensUsed:         d.Int("totalTokensUsed"),
		EstimatedInFlightTokens: d.Int("estimatedInFlightTokens"),
		TotalMerged:             d.Int("totalMerged"),
		TotalMergeFailed:        d.Int("totalMergeFailed"),
		TotalConflicts:          d.Int("totalConflicts"),
		MergeQueueDepth:         d.Int("mergeQueueDepth"),
	}
}

// TotalTasks is done + failed + pending.
func (m Metrics) TotalTasks() int64 {
	return m.CompletedTasks + m.FailedTasks + m.PendingTasks
}

// RunFiles are the artifact paths the orchestrator announces for a run.
type RunFiles struct {
	LogFile       string
	TraceFile     string
	LLMDetailFile string
}

var runFileKeys = []string{"logFile", "traceFile", "llmDetailFile"}

// RunFilesFromData reads run file paths out of a record's data. ok is false when none of the keys are present.
func RunFilesFromData(d Data) (files RunFiles, ok bool) {
	for _, k := range runFileKeys {
		if _, present := d.Get(k); present {
			ok = true
		}
	}
	return RunFiles{
		LogFile:       d.String("logFile"),
		TraceFile:     d.String("traceFile"),
		LLMDetailFile: d.String("llmDetailFile"),
	}, ok
}
