package rag

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageInstruction builds the response-language directive appended
// to prompts. English gets none; any other recognized tag gets an
// explicit instruction naming the language in English.
func languageInstruction(lang string) string {
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return ""
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return ""
	}
	return "IMPORTANT: You MUST respond in " + name + "."
}
