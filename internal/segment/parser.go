// Package segment classifies raw message text into typed segments for
// rendering: plain text, mentions, collection references, and asset
// references. Parsing is purely lexical; resolving a mention's display name
// or an asset's preview image is deferred to render-time collaborators.
package segment

import (
	"strings"

	"tokenchat/internal/domain"
)

// Kind discriminates segment variants.
type Kind string

const (
	KindText       Kind = "text"
	KindMention    Kind = "mention"
	KindCollection Kind = "collection"
	KindAsset      Kind = "asset"
)

// Segment is one classified span of the input. Raw is the exact slice of
// the original text, so concatenating Raw across all segments reproduces
// the input byte for byte.
type Segment struct {
	Kind Kind
	Raw  string

	// Mention fields: exactly one of Username / Address is set.
	Username string
	Address  string

	// Collection and asset reference fields.
	CollectionSlug    string
	CollectionAddress string
	TokenID           string
}

// Options parameterizes a parse.
type Options struct {
	// ChannelContractAddress fills the contract address of asset references
	// that omit one (`#slug:42` inside a collection channel).
	ChannelContractAddress string
}

// Parse classifies the entire input into segments with no gaps or overlaps.
// Unrecognized @/# tokens and malformed references degrade to text; Parse
// never fails.
func Parse(input string, opts Options) []Segment {
	var segs []Segment
	sc := NewScanner(input, opts)
	for sc.Next() {
		segs = append(segs, sc.Segment())
	}
	return segs
}

// Scanner lexes one segment at a time, bufio.Scanner style. A fresh Scanner
// restarts the sequence from the beginning of the input.
type Scanner struct {
	input string
	opts  Options
	pos   int
	cur   Segment
}

// NewScanner returns a Scanner over input.
func NewScanner(input string, opts Options) *Scanner {
	return &Scanner{input: input, opts: opts}
}

// Next advances to the next segment. It returns false when the input is
// exhausted.
func (s *Scanner) Next() bool {
	if s.pos >= len(s.input) {
		return false
	}

	if s.refBoundary(s.pos) {
		if seg, end, ok := s.lexReference(s.pos); ok {
			s.cur = seg
			s.pos = end
			return true
		}
	}

	// Text run: extend until the next position that lexes as a reference.
	start := s.pos
	i := s.pos + 1
	for i < len(s.input) {
		if s.refBoundary(i) {
			if _, _, ok := s.lexReference(i); ok {
				break
			}
		}
		i++
	}
	s.cur = Segment{Kind: KindText, Raw: s.input[start:i]}
	s.pos = i
	return true
}

// Segment returns the segment advanced to by the last call to Next.
func (s *Scanner) Segment() Segment {
	return s.cur
}

// refBoundary reports whether position i can start a reference: an @ or #
// marker not glued to a preceding word character (so "user@host" and
// "##tag" stay text).
func (s *Scanner) refBoundary(i int) bool {
	c := s.input[i]
	if c != '@' && c != '#' {
		return false
	}
	if i == 0 {
		return true
	}
	prev := s.input[i-1]
	return !isWordByte(prev) && prev != '@' && prev != '#'
}

func (s *Scanner) lexReference(start int) (Segment, int, bool) {
	if s.input[start] == '@' {
		return s.lexMention(start)
	}
	return s.lexHashReference(start)
}

// lexMention handles @name and @0xADDRESS.
func (s *Scanner) lexMention(start int) (Segment, int, bool) {
	body, end := readWhile(s.input, start+1, isMentionByte)
	if body == "" {
		return Segment{}, 0, false
	}
	seg := Segment{Kind: KindMention, Raw: s.input[start:end]}
	if isHexAddress(body) {
		seg.Address = domain.NormalizeAddress(body)
	} else {
		seg.Username = body
	}
	return seg, end, true
}

// lexHashReference handles #slug, #slug:tokenID, and the explicit
// #0xADDRESS:tokenID form.
func (s *Scanner) lexHashReference(start int) (Segment, int, bool) {
	body, end := readWhile(s.input, start+1, isSlugByte)
	if body == "" {
		return Segment{}, 0, false
	}

	tokenID := ""
	if end < len(s.input) && s.input[end] == ':' {
		if digits, dEnd := readWhile(s.input, end+1, isDigit); digits != "" {
			tokenID = digits
			end = dEnd
		}
		// A bare trailing colon is not part of the reference.
	}

	seg := Segment{Raw: s.input[start:end], TokenID: tokenID}
	if isHexAddress(body) {
		seg.CollectionAddress = domain.NormalizeAddress(body)
	} else {
		seg.CollectionSlug = body
	}

	if tokenID == "" {
		seg.Kind = KindCollection
		return seg, end, true
	}
	seg.Kind = KindAsset
	if seg.CollectionAddress == "" {
		seg.CollectionAddress = domain.NormalizeAddress(s.opts.ChannelContractAddress)
	}
	return seg, end, true
}

func readWhile(s string, i int, pred func(byte) bool) (string, int) {
	j := i
	for j < len(s) && pred(s[j]) {
		j++
	}
	return s[i:j], j
}

// isHexAddress reports whether body looks like a 0x-prefixed hex contract
// or wallet address (at least 4 hex digits).
func isHexAddress(body string) bool {
	if len(body) < 6 || !strings.HasPrefix(body, "0x") {
		return false
	}
	for i := 2; i < len(body); i++ {
		if !isHexByte(body[i]) {
			return false
		}
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isMentionByte(c byte) bool { return isWordByte(c) }

func isSlugByte(c byte) bool { return isWordByte(c) || c == '-' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexByte(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
