package ir

// Record is one item tracked by the store: a patient in triage, an item on a
// rack in inventory. Records are immutable after creation.
type Record struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
	Severity int64  `json:"severity,omitempty"`
	Expiry   string `json:"expiry,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
	Seq      int64  `json:"seq"`
}

// Entry returns the copy of r that views hold.
func (r Record) Entry() Entry {
	return Entry{
		Key:      r.Key,
		Identity: r.Identity,
		Seq:      r.Seq,
		Severity: r.Severity,
		Expiry:   r.Expiry,
		Bucket:   r.Bucket,
	}
}

// ToIRObject converts the record into its trace representation.
// Empty payload fields are omitted.
func (r Record) ToIRObject() IRObject {
	obj := IRObject{
		"key":  IRString(r.Key),
		"name": IRString(r.Name),
		"seq":  IRInt(r.Seq),
	}
	if r.Severity != 0 {
		obj["severity"] = IRInt(r.Severity)
	}
	if r.Expiry != "" {
		obj["expiry"] = IRString(r.Expiry)
	}
	if r.Bucket != "" {
		obj["bucket"] = IRString(r.Bucket)
	}
	return obj
}

// Entry is a view's copy of a record key together with the attributes the
// view orders by. An entry is live only while the record store holds a record
// with the same key and identity; once that record is removed the entry is
// stale forever, even if the key is later reused.
type Entry struct {
	Key      string `json:"key"`
	Identity string `json:"identity"`
	Seq      int64  `json:"seq"`
	Severity int64  `json:"severity,omitempty"`
	Expiry   string `json:"expiry,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
}

// RemovalCause records why a record left the store.
type RemovalCause string

const (
	// CauseTake is a removal through a view's take-next.
	CauseTake RemovalCause = "take"
	// CauseSweep is a removal by an expiry sweep.
	CauseSweep RemovalCause = "sweep"
	// CauseStale marks a stale entry discarded by a sweep. The record was
	// already gone; this is audit-only and never counts as removed.
	CauseStale RemovalCause = "stale"
)

// Removal is one audit event.
type Removal struct {
	ID       string       `json:"id"`
	Key      string       `json:"key"`
	Identity string       `json:"identity"`
	Cause    RemovalCause `json:"cause"`
	View     string       `json:"view"`
	Bucket   string       `json:"bucket,omitempty"`
	Seq      int64        `json:"seq"`
	Latency  int64        `json:"latency"`
}

// ViewState is the raw backing structure of one view (or one bucket of a
// bucketed view) in structural order. It may hold stale entries.
type ViewState struct {
	View    string  `json:"view"`
	Bucket  string  `json:"bucket,omitempty"`
	Entries []Entry `json:"entries"`
}

// ChannelTotal is the persisted form of one stats channel.
type ChannelTotal struct {
	Channel string `json:"channel"`
	Sum     int64  `json:"sum"`
	Count   int64  `json:"count"`
}

// StaleCount is the running number of stale entries discarded from a view,
// by takes and sweeps alike.
type StaleCount struct {
	View  string `json:"view"`
	Count int64  `json:"count"`
}

// Snapshot is everything needed to rebuild an engine. Liveness is never
// stored: it is recomputed from Records when the views are next read.
//
// ProfileSource holds the CUE text of a profile loaded from a file, so the
// snapshot can be restored without that file. It is empty for built-ins.
type Snapshot struct {
	Profile       string         `json:"profile"`
	ProfileSource string         `json:"profile_source,omitempty"`
	Clock         int64          `json:"clock"`
	Records       []Record       `json:"records"`
	Views         []ViewState    `json:"views"`
	Stats         []ChannelTotal `json:"stats"`
	Stale         []StaleCount   `json:"stale,omitempty"`
}
