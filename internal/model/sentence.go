package model

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentenceKind classifies a sentence by its leading characters
type SentenceKind int

const (
	KindNormal        SentenceKind = iota // Ordinary prose
	KindSectionHeader                     // 一、… / （一）… / 第一章…
	KindListItem                          // 1. … / ① … / ● …
)

func (k SentenceKind) String() string {
	switch k {
	case KindSectionHeader:
		return "section_header"
	case KindListItem:
		return "list_item"
	default:
		return "normal"
	}
}

// Sentence is one unit produced by the sentence splitter
type Sentence struct {
	Text string       `json:"text"`
	Kind SentenceKind `json:"kind"`
}

// NewSentence builds a sentence and derives its kind
func NewSentence(text string) Sentence {
	return Sentence{Text: text, Kind: Classify(text)}
}

// ForcesBreak reports whether the sentence always opens a new paragraph
func (s Sentence) ForcesBreak() bool {
	return s.Kind == KindSectionHeader || s.Kind == KindListItem
}

var (
	sectionOrdinalPattern = regexp.MustCompile(`^[一二三四五六七八九十百]+[、．]\S`)
	sectionParenPattern   = regexp.MustCompile(`^[（(][一二三四五六七八九十百]+[）)]`)
	sectionChapterPattern = regexp.MustCompile(`^第[一二三四五六七八九十百0-9]+[章节部分]`)
	listNumberPattern     = regexp.MustCompile(`^[0-9]+[.．、)）]`)
)

// listGlyphs are leading characters that mark a bullet list item
const listGlyphs = "①②③④⑤⑥⑦⑧⑨⑩⑪⑫⑬⑭⑮⑯⑰⑱⑲⑳●▪•◆■-*"

// Classify derives the structural kind of a sentence
func Classify(text string) SentenceKind {
	text = strings.TrimSpace(text)
	if text == "" {
		return KindNormal
	}

	if sectionOrdinalPattern.MatchString(text) ||
		sectionParenPattern.MatchString(text) ||
		sectionChapterPattern.MatchString(text) {
		return KindSectionHeader
	}

	if loc := listNumberPattern.FindStringIndex(text); loc != nil {
		// "1.5倍" is a decimal, not a list marker
		next, _ := utf8.DecodeRuneInString(text[loc[1]:])
		if !unicode.IsDigit(next) {
			return KindListItem
		}
	}

	first, _ := utf8.DecodeRuneInString(text)
	if strings.ContainsRune(listGlyphs, first) {
		return KindListItem
	}

	return KindNormal
}
