// Package journal keeps a short rolling history of presence events in a
// buntdb file so late-joining consumers and operators can see what happened.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dotside-studios/nfc-presence-agent/protocol"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

// MemoryPath opens a journal that lives only in memory.
const MemoryPath = ":memory:"

const keyPrefix = "event:"

// Options configures a Journal.
type Options struct {
	// Retention is how long an event is kept. Zero keeps events forever.
	Retention time.Duration

	// Reader is stamped on events recorded through the handler methods.
	Reader string
}

// Journal stores presence events. It implements nfc.Handler.
type Journal struct {
	db   *buntdb.DB
	opts Options

	mu      sync.Mutex
	lastUID string
}

// Open opens or creates the journal at path.
func Open(path string, opts Options) (*Journal, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{db: db, opts: opts}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// eventKey sorts lexically in time order: the timestamp is zero padded.
func eventKey(ev protocol.Event) string {
	return fmt.Sprintf("%s%020d:%s", keyPrefix, ev.At.UnixNano(), ev.ID)
}

// Record stores ev, expiring it after the configured retention.
func (j *Journal) Record(ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var opts *buntdb.SetOptions
	if j.opts.Retention > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: j.opts.Retention}
	}

	return j.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(eventKey(ev), string(data), opts)
		return err
	})
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns every stored event.
func (j *Journal) Recent(limit int) ([]protocol.Event, error) {
	events := make([]protocol.Event, 0)
	var decodeErr error

	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("", func(key, value string) bool {
			if !strings.HasPrefix(key, keyPrefix) {
				return true
			}
			var ev protocol.Event
			if err := json.Unmarshal([]byte(value), &ev); err != nil {
				decodeErr = fmt.Errorf("decode %s: %w", key, err)
				return false
			}
			events = append(events, ev)
			return limit <= 0 || len(events) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return events, nil
}

// Count returns the number of stored events.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, _ string) bool {
			if strings.HasPrefix(key, keyPrefix) {
				n++
			}
			return true
		})
	})
	return n, err
}

func (j *Journal) OnArrival(uid string) {
	j.mu.Lock()
	j.lastUID = uid
	j.mu.Unlock()

	j.record(protocol.NewEvent(protocol.EventArrival, uid, j.opts.Reader))
}

func (j *Journal) OnRemoval() {
	j.mu.Lock()
	uid := j.lastUID
	j.lastUID = ""
	j.mu.Unlock()

	j.record(protocol.NewEvent(protocol.EventRemoval, uid, j.opts.Reader))
}

func (j *Journal) record(ev protocol.Event) {
	if err := j.Record(ev); err != nil {
		log.WithFields(log.Fields{"uid": ev.UID, "kind": ev.Kind}).Errorf("Failed to journal event: %v", err)
	}
}
