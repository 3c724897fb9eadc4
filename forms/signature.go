package forms

import (
	"regexp"
	"strings"

	"github.com/jwbth/talkpage/mask"
)

var tildeRe = regexp.MustCompile(`~{3,5}`)

// HasManualSignature reports whether the draft text already carries a
// tilde signature outside of templates and literal-content tags. The
// caller uses it to pre-set the omit-signature toggle when a form is
// opened over existing text.
func HasManualSignature(text string) bool {
	if !strings.Contains(text, "~~~") {
		return false
	}
	var tbl mask.Table
	text = mask.HideTemplates(text, &tbl)
	text = mask.HideTables(text, &tbl)
	text = mask.HideTags(text, &tbl, "nowiki", "pre", "syntaxhighlight", "source")
	return tildeRe.MatchString(text)
}
