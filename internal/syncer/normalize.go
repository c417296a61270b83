package syncer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	verbatimRe    = regexp.MustCompile(`(?s)<!\[CDATA\[.*?\]\]>|<pre(?:\s[^>]*)?>.*?</pre>|<code(?:\s[^>]*)?>.*?</code>`)
	placeholderRe = regexp.MustCompile("<\x00(\\d+)\x00/>")
	serverAttrRe  = regexp.MustCompile(`\s+ac:(?:macro-id|schema-version|local-id)="[^"]*"`)
	taskIDRe      = regexp.MustCompile(`<ac:task-(?:id|uuid)>[^<]*</ac:task-(?:id|uuid)>`)
	spaceRe       = regexp.MustCompile(`\s+`)
	betweenTagsRe = regexp.MustCompile(`>\s+<`)
	selfCloseRe   = regexp.MustCompile(`\s+/>`)
)

// NormalizeStorage reduces a storage-format body to a canonical form so that
// a body read back from Confluence compares equal to the body that was
// written. CDATA sections and the contents of <pre> and <code> elements are
// kept verbatim, since whitespace there is content. Elsewhere whitespace runs
// collapse to one space, whitespace between tags is dropped, "<x />"
// becomes "<x/>", and attributes and elements Confluence assigns on save
// (macro ids, schema versions, local ids, task ids) are removed.
func NormalizeStorage(s string) string {
	var sections []string
	s = verbatimRe.ReplaceAllStringFunc(s, func(m string) string {
		sections = append(sections, m)
		return "<\x00" + strconv.Itoa(len(sections)-1) + "\x00/>"
	})

	s = serverAttrRe.ReplaceAllString(s, "")
	s = taskIDRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	s = betweenTagsRe.ReplaceAllString(s, "><")
	s = selfCloseRe.ReplaceAllString(s, "/>")
	s = strings.TrimSpace(s)

	if len(sections) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		i, _ := strconv.Atoi(placeholderRe.FindStringSubmatch(m)[1])
		return sections[i]
	})
}
