package dispatch

// Stage names one step of the per-request state machine.
//
// Transitions: Received -> CacheCheck -> {Completed} | {QuotaCheck ->
// {Calling -> Persisting -> Completed|Failed} | {Delayed -> QuotaCheck} |
// Failed}. Completed and Failed are the only terminal stages; every request
// resolves to exactly one of them.
type Stage string

const (
	// StageReceived marks request intake.
	StageReceived Stage = "received"
	// StageCacheCheck marks the language pair cache lookup.
	StageCacheCheck Stage = "cache_check"
	// StageQuotaCheck marks governor admission.
	StageQuotaCheck Stage = "quota_check"
	// StageDelayed marks a bounded wait for the next admission window.
	StageDelayed Stage = "delayed"
	// StageCalling marks the remote translation call.
	StageCalling Stage = "calling"
	// StagePersisting marks the durable audit write.
	StagePersisting Stage = "persisting"
	// StageCompleted is the successful terminal stage.
	StageCompleted Stage = "completed"
	// StageFailed is the failing terminal stage.
	StageFailed Stage = "failed"
)
