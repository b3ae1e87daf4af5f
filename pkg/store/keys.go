package store

import "fmt"

// Key schema. Everything lives in one pebble keyspace under distinct
// prefixes; the zero-padded timestamp plus sequence suffix keeps iteration
// order equal to (created_ts, seq) order.
//
//	conv:<key>:msg:<ts20>-<seq6>        current message state
//	msgidx:<id>                         message id -> conversation row key
//	version:msg:<id>:<ts20>-<seq6>      immutable revision history
//	marker:<conv>:<observer>            read marker
//	watermark:<collection>:<observer>   notification baseline
//	convidx:<participant>:<conv>        conversations a participant is in
const (
	convPrefix      = "conv:"
	msgIdxPrefix    = "msgidx:"
	versionPrefix   = "version:msg:"
	markerPrefix    = "marker:"
	watermarkPrefix = "watermark:"
	convIdxPrefix   = "convidx:"
)

func convRowKey(convKey string, ts int64, seq uint64) string {
	return fmt.Sprintf("%s%s:msg:%020d-%06d", convPrefix, convKey, ts, seq)
}

func convRowPrefix(convKey string) string {
	return convPrefix + convKey + ":msg:"
}

func msgIdxKey(id string) string {
	return msgIdxPrefix + id
}

func versionKey(id string, ts int64, seq uint64) string {
	return fmt.Sprintf("%s%s:%020d-%06d", versionPrefix, id, ts, seq)
}

func versionKeyPrefix(id string) string {
	return versionPrefix + id + ":"
}

func markerKey(convKey, observer string) string {
	return markerPrefix + convKey + ":" + observer
}

func watermarkKey(collection, observer string) string {
	return watermarkPrefix + collection + ":" + observer
}

func convIdxKey(participant, convKey string) string {
	return convIdxPrefix + participant + ":" + convKey
}

func convIdxScanPrefix(participant string) string {
	return convIdxPrefix + participant + ":"
}
