// Package dom hosts HTML documents for in-page scripts: a parsed node tree
// with a ready-state lifecycle, load events, and mutation observers.
//
// All tree access goes through the Document so that mutations can be
// recorded. Observer callbacks and event listeners run on a single
// dispatcher goroutine owned by the Document, strictly after the mutation
// that produced them has returned. Unload stops the dispatcher and ends all
// subscriptions.
package dom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnloaded is returned when waiting on a document that has been unloaded.
var ErrUnloaded = errors.New("document unloaded")

// ReadyState mirrors the loading progress of a document.
type ReadyState int

// Ready states, in lifecycle order.
const (
	Loading ReadyState = iota
	Interactive
	Complete
)

func (s ReadyState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Interactive:
		return "interactive"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// Event names a document lifecycle event.
type Event string

// Lifecycle events.
const (
	// EventDOMContentLoaded fires once the document has been fully parsed.
	EventDOMContentLoaded Event = "DOMContentLoaded"
	// EventLoad fires once the document and its resources have loaded.
	EventLoad Event = "load"
)

// Document is a hosted HTML document.
type Document struct {
	root *html.Node
	body *html.Node

	mu        sync.Mutex
	state     ReadyState
	listeners map[Event][]func()
	observers []*Subscription
	queue     []func()
	inflight  int
	idle      chan struct{}
	wake      chan struct{}
	unloaded  chan struct{}
}

// Parse parses a complete HTML document. The returned document is still
// loading; the host advances it with FinishParsing and FinishLoading.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML document: %w", err)
	}
	return NewDocument(root), nil
}

// NewDocument hosts an existing node tree. The body is the first body
// element in the tree, or the root itself if there is none.
func NewDocument(root *html.Node) *Document {
	doc := &Document{
		root:      root,
		body:      findBody(root),
		listeners: make(map[Event][]func()),
		wake:      make(chan struct{}, 1),
		unloaded:  make(chan struct{}),
	}
	if doc.body == nil {
		doc.body = root
	}
	go doc.dispatch()
	return doc
}

func findBody(node *html.Node) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == atom.Body {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// ReadyState returns the current loading state.
func (d *Document) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// AddEventListener registers fn for a lifecycle event. Like in a browser,
// listeners registered after the event has fired are never called.
func (d *Document) AddEventListener(event Event, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[event] = append(d.listeners[event], fn)
}

// Ready calls fn once the document has been parsed. If parsing already
// finished, fn runs immediately on the calling goroutine; otherwise it is
// deferred to EventDOMContentLoaded. The state check and registration are
// atomic, so fn runs exactly once.
func (d *Document) Ready(fn func()) {
	d.mu.Lock()
	if d.state == Loading {
		d.listeners[EventDOMContentLoaded] = append(d.listeners[EventDOMContentLoaded], fn)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	fn()
}

// FinishParsing moves a loading document to Interactive and fires
// EventDOMContentLoaded.
func (d *Document) FinishParsing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advance(Interactive)
}

// FinishLoading moves the document to Complete, firing
// EventDOMContentLoaded first if parsing had not finished yet, then
// EventLoad.
func (d *Document) FinishLoading() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advance(Interactive)
	d.advance(Complete)
}

func (d *Document) advance(state ReadyState) {
	if d.state >= state {
		return
	}
	d.state = state
	var event Event
	switch state {
	case Interactive:
		event = EventDOMContentLoaded
	case Complete:
		event = EventLoad
	default:
		return
	}
	for _, fn := range d.listeners[event] {
		d.schedule(fn)
	}
	delete(d.listeners, event)
}

// Unload tears the document down: pending deliveries are dropped, every
// subscription ends and the dispatcher stops. It is safe to call more than
// once and from within a callback.
func (d *Document) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.unloaded:
		return
	default:
	}
	close(d.unloaded)
	for _, sub := range d.observers {
		close(sub.done)
	}
	d.observers = nil
	d.listeners = make(map[Event][]func())
	d.queue = nil
	d.inflight = 0
	if d.idle != nil {
		close(d.idle)
		d.idle = nil
	}
}

// Settle blocks until every queued event and mutation delivery, including
// any scheduled by the callbacks themselves, has run.
func (d *Document) Settle(ctx context.Context) error {
	for {
		d.mu.Lock()
		select {
		case <-d.unloaded:
			d.mu.Unlock()
			return ErrUnloaded
		default:
		}
		if d.inflight == 0 {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// schedule queues a task for the dispatcher. Callers hold d.mu.
func (d *Document) schedule(task func()) {
	select {
	case <-d.unloaded:
		return
	default:
	}
	d.queue = append(d.queue, task)
	d.inflight++
	if d.idle == nil {
		d.idle = make(chan struct{})
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Document) dispatch() {
	for {
		select {
		case <-d.unloaded:
			return
		case <-d.wake:
		}
		for {
			task, ok := d.next()
			if !ok {
				break
			}
			task()
			d.done()
		}
	}
}

func (d *Document) next() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	task := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return task, true
}

func (d *Document) done() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight == 0 {
		return // unloaded mid-task
	}
	d.inflight--
	if d.inflight == 0 && d.idle != nil {
		close(d.idle)
		d.idle = nil
	}
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// CreateTextNode returns a detached text node.
func (d *Document) CreateTextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// ParseFragment parses markup in the context of the given element and
// returns the detached top-level nodes.
func (d *Document) ParseFragment(parent *html.Node, markup string) ([]*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	return nodes, nil
}

// AppendChild inserts child as the last child of parent, moving it from its
// current parent if it has one.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref, or last if ref is nil,
// moving it from its current parent if it has one.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old := child.Parent; old != nil {
		old.RemoveChild(child)
		d.record(MutationRecord{Type: ChildList, Target: old, RemovedNodes: []*html.Node{child}})
	}
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Type: ChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
	d.record(MutationRecord{Type: ChildList, Target: parent, RemovedNodes: []*html.Node{child}})
}

// Text returns the character data of a text or comment node.
func (d *Document) Text(node *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return node.Data
}

// SetText replaces the character data of a text or comment node.
func (d *Document) SetText(node *html.Node, text string) {
	d.ReplaceText(node, func(string) string { return text })
}

// ReplaceText atomically rewrites the character data of a text or comment
// node with fn, reporting whether it changed. Unchanged data is not written
// and produces no mutation record. fn must not call back into the document.
func (d *Document) ReplaceText(node *html.Node, fn func(string) string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node.Type != html.TextNode && node.Type != html.CommentNode {
		return false
	}
	old := node.Data
	updated := fn(old)
	if updated == old {
		return false
	}
	node.Data = updated
	d.record(MutationRecord{Type: CharacterData, Target: node, OldValue: old})
	return true
}

// ParentElement returns the parent of node if it is an element, else nil.
func (d *Document) ParentElement(node *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return parentElement(node)
}

func parentElement(node *html.Node) *html.Node {
	if node.Parent == nil || node.Parent.Type != html.ElementNode {
		return nil
	}
	return node.Parent
}

// TextNodes returns every descendant text node of root, in document order,
// for which accept returns true. The list is materialized before returning
// so callers may mutate the nodes freely. root itself is never included.
// accept runs with the document locked and must not call back into it.
func (d *Document) TextNodes(root *html.Node, accept func(*html.Node) bool) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode && (accept == nil || accept(child)) {
				nodes = append(nodes, child)
			}
			walk(child)
		}
	}
	walk(root)
	return nodes
}

// TextContent returns the concatenated text of all descendant text nodes.
func (d *Document) TextContent(node *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node.Type == html.TextNode {
		return node.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				sb.WriteString(child.Data)
			}
			walk(child)
		}
	}
	walk(node)
	return sb.String()
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render HTML document: %w", err)
	}
	return nil
}
