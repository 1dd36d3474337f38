package model

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ContentMatch is a compiled content expression: a small NFA whose edges are
// labelled with node types.
type ContentMatch struct {
	expr   string
	edges  [][]nfaEdge
	accept int
}

type nfaEdge struct {
	term *NodeType // nil for an epsilon edge
	to   int
}

// MatchState is a position inside a ContentMatch: the set of NFA states
// reachable after matching some prefix of children.
type MatchState struct {
	match  *ContentMatch
	states []int
}

// Expr returns the source expression.
func (m *ContentMatch) Expr() string { return m.expr }

// Start returns the state before any child has been matched.
func (m *ContentMatch) Start() MatchState {
	return MatchState{match: m, states: m.closure([]int{0})}
}

// Empty reports whether the expression admits no children at all.
func (m *ContentMatch) Empty() bool {
	for _, edges := range m.edges {
		for _, e := range edges {
			if e.term != nil {
				return false
			}
		}
	}
	return true
}

// Types lists every node type appearing in the expression, in edge order.
func (m *ContentMatch) Types() []*NodeType {
	var out []*NodeType
	seen := map[*NodeType]bool{}
	for _, edges := range m.edges {
		for _, e := range edges {
			if e.term != nil && !seen[e.term] {
				seen[e.term] = true
				out = append(out, e.term)
			}
		}
	}
	return out
}

// MatchFragment reports whether the whole fragment satisfies the expression.
func (m *ContentMatch) MatchFragment(f *Fragment) bool {
	st, ok := m.Start().MatchFragment(f, 0, f.ChildCount())
	return ok && st.ValidEnd()
}

func (m *ContentMatch) closure(states []int) []int {
	seen := make(map[int]bool, len(states))
	stack := append([]int(nil), states...)
	for _, s := range states {
		seen[s] = true
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range m.edges[s] {
			if e.term == nil && !seen[e.to] {
				seen[e.to] = true
				stack = append(stack, e.to)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// MatchType advances by one child of type t.
func (s MatchState) MatchType(t *NodeType) (MatchState, bool) {
	var next []int
	for _, st := range s.states {
		for _, e := range s.match.edges[st] {
			if e.term == t {
				next = append(next, e.to)
			}
		}
	}
	if len(next) == 0 {
		return MatchState{}, false
	}
	return MatchState{match: s.match, states: s.match.closure(next)}, true
}

// MatchFragment advances over children [start, end) of f.
func (s MatchState) MatchFragment(f *Fragment, start, end int) (MatchState, bool) {
	cur := s
	for i := start; i < end; i++ {
		next, ok := cur.MatchType(f.Child(i).Type())
		if !ok {
			return MatchState{}, false
		}
		cur = next
	}
	return cur, true
}

// ValidEnd reports whether the children matched so far form complete content.
func (s MatchState) ValidEnd() bool {
	for _, st := range s.states {
		if st == s.match.accept {
			return true
		}
	}
	return false
}

// Next lists the node types that may follow, in edge order.
func (s MatchState) Next() []*NodeType {
	var out []*NodeType
	seen := map[*NodeType]bool{}
	for _, st := range s.states {
		for _, e := range s.match.edges[st] {
			if e.term != nil && !seen[e.term] {
				seen[e.term] = true
				out = append(out, e.term)
			}
		}
	}
	return out
}

// DefaultType returns the first type that may follow and can be created
// without attributes, or nil.
func (s MatchState) DefaultType() *NodeType {
	for _, t := range s.Next() {
		if !t.IsText() && !t.HasRequiredAttrs() {
			return t
		}
	}
	return nil
}

// FillBefore returns nodes that must be inserted so that after is accepted
// from this state (and, with toEnd, the content is complete). Only nodes
// without required attributes are generated.
func (s MatchState) FillBefore(after *Fragment, toEnd bool) (*Fragment, bool) {
	type item struct {
		state MatchState
		types []*NodeType
	}
	seen := map[string]bool{}
	queue := []item{{state: s}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		key := stateKey(cur.state)
		if seen[key] {
			continue
		}
		seen[key] = true

		if end, ok := cur.state.MatchFragment(after, 0, after.ChildCount()); ok && (!toEnd || end.ValidEnd()) {
			nodes := make([]*Node, 0, len(cur.types))
			for _, t := range cur.types {
				n, err := t.CreateAndFill(nil)
				if err != nil {
					return nil, false
				}
				nodes = append(nodes, n)
			}
			return NewFragment(nodes...), true
		}
		for _, t := range cur.state.Next() {
			if t.IsText() || t.HasRequiredAttrs() {
				continue
			}
			next, _ := cur.state.MatchType(t)
			types := append(append([]*NodeType(nil), cur.types...), t)
			queue = append(queue, item{state: next, types: types})
		}
	}
	return nil, false
}

func stateKey(s MatchState) string {
	var b strings.Builder
	for _, st := range s.states {
		b.WriteString(strconv.Itoa(st))
		b.WriteByte(',')
	}
	return b.String()
}

// Content expression grammar:
//
//	expr      = seq ("|" seq)*
//	seq       = subscript+
//	subscript = atom ("*" | "+" | "?" | "{" n ("," m?)? "}")*
//	atom      = "(" expr ")" | name
type exprNode struct {
	kind  exprKind
	types []*NodeType
	items []*exprNode
	min   int
	max   int // -1 is unbounded
}

type exprKind int

const (
	exprName exprKind = iota
	exprSeq
	exprChoice
	exprRepeat
)

type exprParser struct {
	typeName string
	src      string
	tokens   []string
	pos      int
	resolve  func(name string) []*NodeType
}

func compileContent(typeName, src string, resolve func(string) []*NodeType) (*ContentMatch, error) {
	p := &exprParser{typeName: typeName, src: src, tokens: tokenizeExpr(src), resolve: resolve}
	cm := &ContentMatch{expr: src, edges: [][]nfaEdge{nil}}
	if len(p.tokens) == 0 {
		cm.accept = 0
		return cm, nil
	}
	ast, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.fail("unexpected token " + strconv.Quote(p.tokens[p.pos]))
	}
	cm.accept = cm.compile(ast, 0)
	return cm, nil
}

func tokenizeExpr(src string) []string {
	var out []string
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			j := i
			for j < len(runes) && (runes[j] == '_' || unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) {
				j++
			}
			out = append(out, string(runes[i:j]))
			i = j
		default:
			out = append(out, string(r))
			i++
		}
	}
	return out
}

func (p *exprParser) fail(reason string) error {
	return &ExpressionError{Type: p.typeName, Expression: p.src, Reason: reason}
}

func (p *exprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprParser) eat(tok string) bool {
	if p.peek() == tok {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) parseExpr() (*exprNode, error) {
	var alts []*exprNode
	for {
		seq, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		alts = append(alts, seq)
		if !p.eat("|") {
			break
		}
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return &exprNode{kind: exprChoice, items: alts}, nil
}

func (p *exprParser) parseSeq() (*exprNode, error) {
	var items []*exprNode
	for {
		tok := p.peek()
		if tok == "" || tok == ")" || tok == "|" {
			break
		}
		item, err := p.parseSubscript()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, p.fail("empty sequence")
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &exprNode{kind: exprSeq, items: items}, nil
}

func (p *exprParser) parseSubscript() (*exprNode, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.eat("*"):
			expr = &exprNode{kind: exprRepeat, items: []*exprNode{expr}, min: 0, max: -1}
		case p.eat("+"):
			expr = &exprNode{kind: exprRepeat, items: []*exprNode{expr}, min: 1, max: -1}
		case p.eat("?"):
			expr = &exprNode{kind: exprRepeat, items: []*exprNode{expr}, min: 0, max: 1}
		case p.eat("{"):
			min, err := p.parseNum()
			if err != nil {
				return nil, err
			}
			max := min
			if p.eat(",") {
				if p.peek() == "}" {
					max = -1
				} else if max, err = p.parseNum(); err != nil {
					return nil, err
				}
			}
			if !p.eat("}") {
				return nil, p.fail("unclosed range")
			}
			if max != -1 && max < min {
				return nil, p.fail("range maximum below minimum")
			}
			expr = &exprNode{kind: exprRepeat, items: []*exprNode{expr}, min: min, max: max}
		default:
			return expr, nil
		}
	}
}

func (p *exprParser) parseNum() (int, error) {
	n, err := strconv.Atoi(p.peek())
	if err != nil {
		return 0, p.fail("expected number, got " + strconv.Quote(p.peek()))
	}
	p.pos++
	return n, nil
}

func (p *exprParser) parseAtom() (*exprNode, error) {
	if p.eat("(") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.eat(")") {
			return nil, p.fail("missing closing paren")
		}
		return expr, nil
	}
	name := p.peek()
	if name == "" || !(name[0] == '_' || unicode.IsLetter(rune(name[0])) || unicode.IsDigit(rune(name[0]))) {
		return nil, p.fail("unexpected token " + strconv.Quote(name))
	}
	p.pos++
	types := p.resolve(name)
	if len(types) == 0 {
		return nil, &UnknownTypeError{Kind: "node or group", Name: name}
	}
	return &exprNode{kind: exprName, types: types}, nil
}

func (m *ContentMatch) newState() int {
	m.edges = append(m.edges, nil)
	return len(m.edges) - 1
}

func (m *ContentMatch) edge(from int, term *NodeType, to int) {
	m.edges[from] = append(m.edges[from], nfaEdge{term: term, to: to})
}

// compile emits the NFA fragment for n starting at from and returns the
// state reached once n has been matched.
func (m *ContentMatch) compile(n *exprNode, from int) int {
	switch n.kind {
	case exprName:
		to := m.newState()
		for _, t := range n.types {
			m.edge(from, t, to)
		}
		return to
	case exprSeq:
		cur := from
		for _, item := range n.items {
			cur = m.compile(item, cur)
		}
		return cur
	case exprChoice:
		to := m.newState()
		for _, alt := range n.items {
			m.edge(m.compile(alt, from), nil, to)
		}
		return to
	default:
		inner := n.items[0]
		cur := from
		for i := 0; i < n.min; i++ {
			cur = m.compile(inner, cur)
		}
		if n.max == -1 {
			loop := m.newState()
			m.edge(cur, nil, loop)
			m.edge(m.compile(inner, loop), nil, loop)
			return loop
		}
		for i := n.min; i < n.max; i++ {
			next := m.newState()
			m.edge(cur, nil, next)
			m.edge(m.compile(inner, cur), nil, next)
			cur = next
		}
		return cur
	}
}
