package task

import "encoding/binary"

// Key prefixes for task data structures.
//
//	task/{id}                          - Task row
//	ready/{orch}/{start_ms}/{id}       - Claim-eligible index, FIFO by start date
//	proc/{proc_inst_id}/{start_ms}/{id}- Process instance index
//	lease_idx/{expires_ms}/{id}        - Lease deadline index for the sweeper
const (
	prefixTask     = "task/"
	prefixReady    = "ready/"
	prefixProc     = "proc/"
	prefixLeaseIdx = "lease_idx/"
)

// TaskKey returns the row key for a task id.
func TaskKey(id string) []byte {
	return []byte(prefixTask + id)
}

// TaskPrefix returns the scan prefix over all task rows.
func TaskPrefix() []byte { return []byte(prefixTask) }

// ReadyKey returns the claim-eligibility index key. The 8-byte big-endian
// start date makes a prefix scan yield oldest-first ordering.
func ReadyKey(orch string, startMs int64, id string) []byte {
	prefix := prefixReady + orch + "/"
	key := make([]byte, len(prefix)+8+len(id))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(startMs))
	copy(key[len(prefix)+8:], id)
	return key
}

// ReadyPrefix returns the scan prefix for an orchestrator's eligible rows.
func ReadyPrefix(orch string) []byte {
	return []byte(prefixReady + orch + "/")
}

// ProcKey returns the process-instance index key, ordered by start date.
func ProcKey(procInstID string, startMs int64, id string) []byte {
	prefix := prefixProc + procInstID + "/"
	key := make([]byte, len(prefix)+8+len(id))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(startMs))
	copy(key[len(prefix)+8:], id)
	return key
}

// ProcPrefix returns the scan prefix for one process instance.
func ProcPrefix(procInstID string) []byte {
	return []byte(prefixProc + procInstID + "/")
}

// LeaseIdxKey returns the lease deadline index key.
func LeaseIdxKey(expiresMs int64, id string) []byte {
	key := make([]byte, len(prefixLeaseIdx)+8+len(id))
	copy(key, prefixLeaseIdx)
	binary.BigEndian.PutUint64(key[len(prefixLeaseIdx):], uint64(expiresMs))
	copy(key[len(prefixLeaseIdx)+8:], id)
	return key
}

// LeaseIdxPrefix returns the scan prefix over all lease deadlines.
func LeaseIdxPrefix() []byte { return []byte(prefixLeaseIdx) }

// indexedID extracts the task id from an index key of the form
// prefix + 8-byte timestamp + id.
func indexedID(key, prefix []byte) (string, bool) {
	if len(key) < len(prefix)+8+1 {
		return "", false
	}
	return string(key[len(prefix)+8:]), true
}

// indexedMs extracts the 8-byte timestamp from an index key.
func indexedMs(key, prefix []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
}

// keyRange returns inclusive-lo, exclusive-hi bounds for a prefix scan.
func keyRange(prefix []byte) ([]byte, []byte) {
	hi := make([]byte, len(prefix)+1)
	copy(hi, prefix)
	hi[len(prefix)] = 0xFF
	return prefix, hi
}
