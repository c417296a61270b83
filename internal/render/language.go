package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// confluenceNames maps chroma lexer names to the identifiers the Confluence
// code macro expects where the two differ.
var confluenceNames = map[string]string{
	"c#":         "csharp",
	"c++":        "cpp",
	"plaintext":  "text",
	"bash":       "bash",
	"shell":      "bash",
	"powershell": "powershell",
	"yaml":       "yaml",
	"docker":     "dockerfile",
}

// CodeLanguage normalizes a fence info string to a code macro language.
// Aliases such as "py", "sh" or "golang" resolve through chroma's lexer
// registry; anything chroma does not know is passed through lowercased.
func CodeLanguage(info string) string {
	lang := strings.ToLower(strings.TrimSpace(info))
	if lang == "" {
		return ""
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return lang
	}
	name := strings.ToLower(lexer.Config().Name)
	if mapped, ok := confluenceNames[name]; ok {
		return mapped
	}
	return name
}
