package block

import (
	"regexp"
	"strings"
)

// placeholderRe matches {{name}} tokens. Names are word characters,
// dashes, and dots.
var placeholderRe = regexp.MustCompile(`\{\{([\w.-]+)\}\}`)

// Blank is substituted for a referenced block whose content is empty.
// The model is prompted to treat it as "nothing saved here yet".
const Blank = "BLANK"

// ExtractPlaceholders returns the distinct {{name}} tokens of a template
// in order of first appearance.
func ExtractPlaceholders(template string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Resolve substitutes every {{name}} occurrence that matches a block in
// blocks with that block's content, or Blank when the content is empty.
// A placeholder with no matching block at all is left verbatim in the
// output. That fallback mirrors long-standing behavior: callers normally
// pre-create a block for every extracted placeholder, so an untouched
// token only appears when resolution is invoked with a partial block set.
func Resolve(template string, blocks []Block) string {
	out := template
	for _, b := range blocks {
		content := b.Content
		if content == "" {
			content = Blank
		}
		out = strings.ReplaceAll(out, "{{"+b.Name+"}}", content)
	}
	return out
}
