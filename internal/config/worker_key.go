package config

// WorkerKeyStruct names the Redis lists between the session layer and the
// persistence workers.
type WorkerKeyStruct struct {
	PersistResultsQueue    string
	PersistViolationsQueue string
	PersistSnapshotsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue:    "persist_results_queue",
	PersistViolationsQueue: "persist_violations_queue",
	PersistSnapshotsQueue:  "persist_snapshots_queue",
}

// DeadLetter returns the list holding payloads from queue that could not
// be decoded. Operators inspect it with LRANGE.
func (k *WorkerKeyStruct) DeadLetter(queue string) string {
	return queue + ":dead"
}

// Queues lists every persistence queue, for health reporting.
func (k *WorkerKeyStruct) Queues() []string {
	return []string{k.PersistResultsQueue, k.PersistViolationsQueue, k.PersistSnapshotsQueue}
}
