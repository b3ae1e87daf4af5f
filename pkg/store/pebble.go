package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketsync/pkg/logger"
	"marketsync/pkg/models"
	"marketsync/pkg/utils"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string
)

// ErrNotFound reports an absent row. Callers translate it into their own
// not-found semantics (delete treats it as already done).
var ErrNotFound = pebble.ErrNotFound

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// idxEntry maps a message id to the conversation row holding its current
// state. The conversation row key never changes after send.
type idxEntry struct {
	ConvKey string `json:"conv_key"`
	RowKey  string `json:"row_key"`
}

func getJSON(key string, v interface{}) error {
	raw, closer, err := db.Get([]byte(key))
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(raw, v)
}

func setJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return db.Set([]byte(key), b, pebble.Sync)
}

// AppendMessage stores a freshly sent message: the conversation row, the
// id index, an initial revision, and the participant conversation index for
// both ends of the pair.
func AppendMessage(convKey string, msg models.Message) error {
	if db == nil {
		return notOpened()
	}
	rowKey := convRowKey(convKey, msg.CreatedTS, msg.Seq)
	if err := setJSON(rowKey, msg); err != nil {
		logger.Error("append_message_failed", "conv", convKey, "key", rowKey, "error", err)
		return err
	}
	if err := setJSON(msgIdxKey(msg.ID), idxEntry{ConvKey: convKey, RowKey: rowKey}); err != nil {
		logger.Error("append_message_index_failed", "id", msg.ID, "error", err)
		return err
	}
	if err := setJSON(versionKey(msg.ID, msg.CreatedTS, msg.Seq), msg); err != nil {
		return err
	}
	for _, p := range []string{msg.SenderID, msg.ReceiverID} {
		if err := db.Set([]byte(convIdxKey(p, convKey)), []byte(convKey), pebble.Sync); err != nil {
			return err
		}
	}
	logger.Debug("message_saved", "conv", convKey, "id", msg.ID)
	return nil
}

// GetMessage returns the current state of the message with the given id and
// the conversation key it belongs to.
func GetMessage(id string) (models.Message, string, error) {
	if db == nil {
		return models.Message{}, "", notOpened()
	}
	var idx idxEntry
	if err := getJSON(msgIdxKey(id), &idx); err != nil {
		return models.Message{}, "", err
	}
	var m models.Message
	if err := getJSON(idx.RowKey, &m); err != nil {
		return models.Message{}, "", err
	}
	return m, idx.ConvKey, nil
}

// MutateMessage applies fn to the current state of the message under the
// row lock, persists the result and appends a revision. If fn returns an
// error nothing is written and the error is passed through, so policy
// denials leave the stored message untouched.
func MutateMessage(id string, fn func(m *models.Message) error) (models.Message, error) {
	if db == nil {
		return models.Message{}, notOpened()
	}
	var idx idxEntry
	if err := getJSON(msgIdxKey(id), &idx); err != nil {
		return models.Message{}, err
	}

	l := lockRow(idx.RowKey)
	l.Lock()
	defer l.Unlock()

	var m models.Message
	if err := getJSON(idx.RowKey, &m); err != nil {
		return models.Message{}, err
	}
	if err := fn(&m); err != nil {
		return models.Message{}, err
	}
	if err := setJSON(idx.RowKey, m); err != nil {
		logger.Error("mutate_message_failed", "id", id, "error", err)
		return models.Message{}, err
	}
	if err := setJSON(versionKey(id, time.Now().UTC().UnixNano(), utils.NextSeq()), m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// ListConversation returns non-tombstoned messages of a conversation in
// (created_ts, seq) ascending order, resuming strictly after the cursor.
// limit <= 0 means no limit.
func ListConversation(convKey string, after *Cursor, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte(convRowPrefix(convKey))
	seek := prefix
	if after != nil {
		seek = []byte(convRowKey(convKey, after.TS, after.Seq))
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for iter.SeekGE(seek); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message row %s: %w", iter.Key(), err)
		}
		// cursor is exclusive
		if after != nil && !m.After(after.TS, after.Seq) {
			continue
		}
		if m.Deleted {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// LastMessage returns the newest non-tombstoned message of a conversation;
// ok is false for an empty conversation.
func LastMessage(convKey string) (models.Message, bool, error) {
	if db == nil {
		return models.Message{}, false, notOpened()
	}
	prefix := []byte(convRowPrefix(convKey))
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return models.Message{}, false, err
	}
	defer iter.Close()
	for valid := iter.SeekLT(upper); valid; valid = iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return models.Message{}, false, fmt.Errorf("invalid message row %s: %w", iter.Key(), err)
		}
		if m.Deleted {
			continue
		}
		return m, true, nil
	}
	return models.Message{}, false, iter.Error()
}

// ListMessageVersions returns every stored revision of a message in
// chronological order, tombstone included.
func ListMessageVersions(id string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte(versionKeyPrefix(id))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid version row %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// ConversationsOf returns the conversation keys the participant appears in.
func ConversationsOf(participant string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := []byte(convIdxScanPrefix(participant))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Value()...)))
	}
	return out, iter.Error()
}

// CountMessagesTo returns the number of non-tombstoned messages addressed to
// the observer across all conversations. Backs the "messages" collection of
// the watermark engine.
func CountMessagesTo(observer string) (int64, error) {
	convs, err := ConversationsOf(observer)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, conv := range convs {
		msgs, err := ListConversation(conv, nil, 0)
		if err != nil {
			return 0, err
		}
		for _, m := range msgs {
			if m.ReceiverID == observer {
				total++
			}
		}
	}
	return total, nil
}

// PurgeTombstones hard-deletes tombstoned messages whose deletion is older
// than cutoff, together with their id index and revision history. Returns
// the number of messages purged.
func PurgeTombstones(cutoff time.Time) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	prefix := []byte(convPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	type victim struct {
		rowKey string
		id     string
	}
	var victims []victim
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.Deleted && m.DeletedTS > 0 && m.DeletedTS < cutoff.UnixNano() {
			victims = append(victims, victim{rowKey: string(iter.Key()), id: m.ID})
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return 0, err
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	for _, v := range victims {
		if err := db.Delete([]byte(v.rowKey), pebble.Sync); err != nil {
			return 0, err
		}
		if err := db.Delete([]byte(msgIdxKey(v.id)), pebble.Sync); err != nil {
			return 0, err
		}
		if err := deletePrefix(versionKeyPrefix(v.id)); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

func deletePrefix(prefix string) error {
	p := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	var keys [][]byte
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return err
	}
	if err := iter.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err denotes an absent row.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}
