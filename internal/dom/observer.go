package dom

import (
	"golang.org/x/net/html"
)

// MutationType classifies a MutationRecord.
type MutationType int

// Mutation types.
const (
	// ChildList records nodes added to or removed from Target.
	ChildList MutationType = iota
	// CharacterData records a change to the data of the Target text node.
	CharacterData
)

func (t MutationType) String() string {
	if t == CharacterData {
		return "characterData"
	}
	return "childList"
}

// MutationRecord describes a single change to the tree.
type MutationRecord struct {
	Type         MutationType
	Target       *html.Node
	AddedNodes   []*html.Node
	RemovedNodes []*html.Node
	OldValue     string
}

// ObserveOptions selects which mutations a subscription receives.
type ObserveOptions struct {
	ChildList     bool
	CharacterData bool
	// Subtree extends observation from the target to all its descendants.
	Subtree bool
}

// MutationCallback receives a batch of records in the order they occurred.
type MutationCallback func([]MutationRecord)

// Subscription is a standing mutation observer. It lives as long as its
// document: there is no manual disconnect, Done is closed on unload.
type Subscription struct {
	doc      *Document
	target   *html.Node
	opts     ObserveOptions
	callback MutationCallback

	// guarded by doc.mu
	pending   []MutationRecord
	scheduled bool
	done      chan struct{}
}

// Observe registers callback for mutations of target matching opts.
// Records are batched and delivered on the document's dispatcher after the
// mutations that produced them complete.
func (d *Document) Observe(target *html.Node, opts ObserveOptions, callback MutationCallback) *Subscription {
	sub := &Subscription{
		doc:      d,
		target:   target,
		opts:     opts,
		callback: callback,
		done:     make(chan struct{}),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.unloaded:
		close(sub.done)
	default:
		d.observers = append(d.observers, sub)
	}
	return sub
}

// Done is closed when the document is unloaded.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// record queues rec for every interested subscription. Callers hold d.mu.
func (d *Document) record(rec MutationRecord) {
	for _, sub := range d.observers {
		if !sub.wants(rec) {
			continue
		}
		sub.pending = append(sub.pending, rec)
		if !sub.scheduled {
			sub.scheduled = true
			d.schedule(sub.deliver)
		}
	}
}

func (s *Subscription) wants(rec MutationRecord) bool {
	switch rec.Type {
	case ChildList:
		if !s.opts.ChildList {
			return false
		}
	case CharacterData:
		if !s.opts.CharacterData {
			return false
		}
	}
	if rec.Target == s.target {
		return true
	}
	if !s.opts.Subtree {
		return false
	}
	for node := rec.Target.Parent; node != nil; node = node.Parent {
		if node == s.target {
			return true
		}
	}
	return false
}

func (s *Subscription) deliver() {
	s.doc.mu.Lock()
	records := s.pending
	s.pending = nil
	s.scheduled = false
	s.doc.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}
	if len(records) > 0 {
		s.callback(records)
	}
}
