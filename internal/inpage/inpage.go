// Package inpage keeps the visible text of a hosted document recapitalized
// with the anchored rule, including text inserted after the document loads.
package inpage

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/stolasapp/recorrect/internal/dom"
	"github.com/stolasapp/recorrect/internal/rule"
)

// skippedParents are elements whose text is never rendered as page copy.
var skippedParents = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
}

// Transformer is an installed in-page transformer.
type Transformer struct {
	doc    *dom.Document
	rule   rule.Rule
	logger *slog.Logger
}

// Install attaches a transformer to doc. Once the document has been parsed
// (immediately, if it already has been) every qualifying text node is
// rewritten and a standing observer rewrites inserted content. When the
// document finishes loading, the whole body is swept once more to catch
// anything inserted between the two. The observer lives until doc unloads.
func Install(doc *dom.Document, logger *slog.Logger) *Transformer {
	tr := &Transformer{
		doc:    doc,
		rule:   rule.Anchored,
		logger: logger.With(slog.String("component", "inpage")),
	}
	doc.Ready(tr.initialize)
	doc.AddEventListener(dom.EventLoad, func() {
		tr.ProcessTextNodes(doc.Body())
	})
	return tr
}

func (tr *Transformer) initialize() {
	tr.ProcessTextNodes(tr.doc.Body())
	tr.doc.Observe(tr.doc.Body(), dom.ObserveOptions{
		ChildList:     true,
		CharacterData: true,
		Subtree:       true,
	}, tr.handleMutations)
	tr.logger.Info("re-capitalizer initialized",
		slog.String("ready_state", tr.doc.ReadyState().String()),
	)
}

// ProcessTextNodes rewrites every qualifying text node under root and
// returns how many changed. Nodes are collected before any is modified.
func (tr *Transformer) ProcessTextNodes(root *html.Node) int {
	nodes := tr.doc.TextNodes(root, acceptTextNode)
	changed, replacements := 0, 0
	for _, node := range nodes {
		if tr.doc.ReplaceText(node, tr.rewrite(&replacements)) {
			changed++
		}
	}
	if changed > 0 {
		tr.logger.Debug("rewrote text nodes",
			slog.String("rule", tr.rule.Name()),
			slog.Int("collected", len(nodes)),
			slog.Int("changed", changed),
			slog.Int("replacements", replacements),
		)
	}
	return changed
}

// rewrite applies the rule, adding the number of replacements to count.
func (tr *Transformer) rewrite(count *int) func(string) string {
	return func(text string) string {
		if !tr.rule.Match(text) {
			return text
		}
		*count += tr.rule.Count(text)
		return tr.rule.Apply(text)
	}
}

func (tr *Transformer) handleMutations(records []dom.MutationRecord) {
	for _, rec := range records {
		for _, node := range rec.AddedNodes {
			switch node.Type {
			case html.ElementNode:
				tr.ProcessTextNodes(node)
			case html.TextNode:
				tr.processAddedText(node)
			default:
			}
		}
	}
}

// processAddedText applies the parent checks only; unlike the sweep, inserted
// whitespace is not filtered since rewriting it is a no-op.
func (tr *Transformer) processAddedText(node *html.Node) {
	parent := tr.doc.ParentElement(node)
	if parent == nil || isSkippedElement(parent) {
		return
	}
	var replacements int
	if tr.doc.ReplaceText(node, tr.rewrite(&replacements)) {
		tr.logger.Debug("rewrote inserted text",
			slog.String("rule", tr.rule.Name()),
			slog.Int("replacements", replacements),
		)
	}
}

// acceptTextNode runs with the document locked.
func acceptTextNode(node *html.Node) bool {
	parent := node.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return false
	}
	if isSkippedElement(parent) {
		return false
	}
	return strings.TrimSpace(node.Data) != ""
}

func isSkippedElement(node *html.Node) bool {
	_, skipped := skippedParents[strings.ToLower(node.Data)]
	return skipped
}
