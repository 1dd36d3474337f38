package command

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/state"
)

// maxMatch bounds how much text before the cursor rules look at.
const maxMatch = 500

// InputRuleHandler replaces the matched range [start, end) in tr. match
// holds the regexp submatches.
type InputRuleHandler func(tr *state.Transaction, match []string, start, end int) error

// InputRule fires when text typed at the cursor completes a Pattern match
// that ends at the cursor. Patterns should be anchored with $.
type InputRule struct {
	Pattern *regexp.Regexp
	Handler InputRuleHandler
}

// TextblockTypeInputRule turns the textblock the rule fires in into typ,
// removing the matched text. getAttrs may be nil.
func TextblockTypeInputRule(pattern *regexp.Regexp, typ *model.NodeType, getAttrs func(match []string) model.Attrs) InputRule {
	return InputRule{
		Pattern: pattern,
		Handler: func(tr *state.Transaction, match []string, start, end int) error {
			r, err := tr.Doc.Resolve(start)
			if err != nil {
				return err
			}
			if !canChangeType(tr.Doc, r.Before(r.Depth), typ) {
				return fmt.Errorf("%s is not allowed here", typ.Name)
			}
			var attrs model.Attrs
			if getAttrs != nil {
				attrs = getAttrs(match)
			}
			if err := tr.Delete(start, end); err != nil {
				return err
			}
			_, err = tr.SetNodeMarkup(r.Before(r.Depth), nil, typ, attrs)
			return err
		},
	}
}

// HeadingInputRule converts "# " through a run of levels hashes followed by
// a space at the start of a textblock into a heading of that level.
func HeadingInputRule(heading *model.NodeType, levels int) InputRule {
	pattern := regexp.MustCompile(fmt.Sprintf(`^(#{1,%d})\s$`, levels))
	return TextblockTypeInputRule(pattern, heading, func(match []string) model.Attrs {
		return model.Attrs{"level": len(match[1])}
	})
}

// MarkInputRule applies markType to text typed between delimiters. The
// pattern's last group is the marked text and the group before it the
// whole delimited span; everything in the span but the text is removed.
func MarkInputRule(pattern *regexp.Regexp, markType *model.MarkType, getAttrs func(match []string) model.Attrs) InputRule {
	return InputRule{
		Pattern: pattern,
		Handler: func(tr *state.Transaction, match []string, start, end int) error {
			last := len(match) - 1
			if last < 2 || match[last] == "" {
				return fmt.Errorf("pattern %s needs a span group and a text group", pattern)
			}
			span, text := match[last-1], match[last]
			spanStart := start + utf8.RuneCountInString(match[0][:strings.Index(match[0], span)])
			// The final delimiter rune is the typed text, not yet in the document.
			spanEnd := spanStart + utf8.RuneCountInString(span) - 1
			textStart := spanStart + utf8.RuneCountInString(span[:strings.LastIndex(span, text)])
			textEnd := textStart + utf8.RuneCountInString(text)
			if tr.Doc.RangeHasMark(spanStart, spanEnd, markType) {
				return fmt.Errorf("%s already applied", markType.Name)
			}
			if textEnd < spanEnd {
				if err := tr.Delete(textEnd, spanEnd); err != nil {
					return err
				}
			}
			if textStart > spanStart {
				if err := tr.Delete(spanStart, textStart); err != nil {
					return err
				}
			}
			var attrs model.Attrs
			if getAttrs != nil {
				attrs = getAttrs(match)
			}
			mark, err := markType.Create(attrs)
			if err != nil {
				return err
			}
			return tr.AddMark(spanStart, spanStart+utf8.RuneCountInString(text), mark)
		},
	}
}

// RunInputRules checks whether typing text over [from, to) triggers one of
// rules. The first rule whose handler succeeds is dispatched; the typed text
// itself is not inserted. Rules never fire inside code blocks.
func RunInputRules(st *state.EditorState, from, to int, text string, rules []InputRule, dispatch Dispatch) bool {
	doc := st.Doc()
	r, err := doc.Resolve(from)
	if err != nil || !r.Parent().InlineContent() || r.Parent().Type().IsCode() {
		return false
	}
	if end, err := doc.Resolve(to); err != nil || !end.SameParent(r) {
		return false
	}
	before := textBefore(r.Parent(), r.ParentOffset) + text
	typed := utf8.RuneCountInString(text)

	for _, rule := range rules {
		match := rule.Pattern.FindStringSubmatch(before)
		if match == nil {
			continue
		}
		matchStart := from - (utf8.RuneCountInString(match[0]) - typed)
		tr := st.Tr()
		if err := rule.Handler(tr, match, matchStart, to); err != nil {
			continue
		}
		if dispatch != nil {
			dispatch(tr)
		}
		return true
	}
	return false
}

// textBefore returns up to maxMatch positions of parent's content before
// offset, one rune per position. Inline leaves read as U+FFFC.
func textBefore(parent *model.Node, offset int) string {
	from := max(0, offset-maxMatch)
	var out []rune
	parent.ForEach(func(child *model.Node, pos, _ int) {
		end := pos + child.NodeSize()
		if end <= from || pos >= offset {
			return
		}
		if !child.IsText() {
			out = append(out, '\uFFFC')
			return
		}
		runes := []rune(child.Text())
		out = append(out, runes[max(from, pos)-pos:min(offset, end)-pos]...)
	})
	return string(out)
}
