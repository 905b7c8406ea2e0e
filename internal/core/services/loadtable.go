package services

import (
	"sort"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// entryState is the per-id status of a build's file table.
type entryState int

const (
	stateUnseen entryState = iota
	statePending
	stateLoaded
)

// loadReply is delivered exactly once to a pending request.
type loadReply struct {
	contents []byte
	err      error
}

// tableEntry is one id's state. Pending entries hold the reply channel of
// the single outstanding request; loaded entries hold the file.
type tableEntry struct {
	state  entryState
	file   domain.File
	reply  chan<- loadReply
	source bool
}

// loadTable is the file store together with its pending requests.
// It is owned by the run coordinator and never shared.
type loadTable struct {
	entries map[domain.CanonicalID]*tableEntry
	loaded  int
}

func newLoadTable() *loadTable {
	return &loadTable{entries: make(map[domain.CanonicalID]*tableEntry)}
}

// state returns the status of id.
func (t *loadTable) state(id domain.CanonicalID) entryState {
	if e, ok := t.entries[id]; ok {
		return e.state
	}
	return stateUnseen
}

// get returns the loaded file for id.
func (t *loadTable) get(id domain.CanonicalID) (domain.File, bool) {
	e, ok := t.entries[id]
	if !ok || e.state != stateLoaded {
		return domain.File{}, false
	}
	return e.file, true
}

// register records an outstanding request for an unseen id.
func (t *loadTable) register(id domain.CanonicalID, reply chan<- loadReply, source bool) error {
	if e, ok := t.entries[id]; ok {
		if e.state == statePending {
			return &domain.DuplicateRequestError{ID: id}
		}
		return nil
	}
	t.entries[id] = &tableEntry{state: statePending, reply: reply, source: source}
	return nil
}

// insert adds file unless its id is already loaded. It resolves a pending
// request for the id, if any.
func (t *loadTable) insert(file domain.File) bool {
	e, ok := t.entries[file.ID]
	if ok && e.state == stateLoaded {
		return false
	}
	t.store(file, e)
	return true
}

// overwrite adds or replaces file, resolving a pending request for the id.
func (t *loadTable) overwrite(file domain.File) {
	t.store(file, t.entries[file.ID])
}

func (t *loadTable) store(file domain.File, prev *tableEntry) {
	if prev != nil && prev.state == statePending && prev.reply != nil {
		prev.reply <- loadReply{contents: file.Contents}
	}
	if prev == nil || prev.state != stateLoaded {
		t.loaded++
	}
	t.entries[file.ID] = &tableEntry{state: stateLoaded, file: file}
}

// reject fails the pending request for id and forgets the id.
func (t *loadTable) reject(id domain.CanonicalID, err error) {
	e, ok := t.entries[id]
	if !ok || e.state != statePending {
		return
	}
	if e.reply != nil {
		e.reply <- loadReply{err: err}
	}
	delete(t.entries, id)
}

// pending returns the ids with an outstanding request, sorted. With
// sourcesOnly set, only declared sources are returned.
func (t *loadTable) pending(sourcesOnly bool) []domain.CanonicalID {
	var ids []domain.CanonicalID
	for id, e := range t.entries {
		if e.state != statePending {
			continue
		}
		if sourcesOnly && !e.source {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// files returns every loaded file, sorted by id.
func (t *loadTable) files() []domain.File {
	out := make([]domain.File, 0, t.loaded)
	for _, e := range t.entries {
		if e.state == stateLoaded {
			out = append(out, e.file.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
