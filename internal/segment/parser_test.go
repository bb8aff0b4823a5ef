package segment

import (
	"strings"
	"testing"
)

func TestParse_PlainText(t *testing.T) {
	segs := Parse("hello world", Options{})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Kind != KindText || segs[0].Raw != "hello world" {
		t.Fatalf("unexpected segment: %+v", segs[0])
	}
}

func TestParse_UsernameMention(t *testing.T) {
	segs := Parse("gm @alice", Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[1].Kind != KindMention || segs[1].Username != "alice" {
		t.Fatalf("expected mention of alice, got %+v", segs[1])
	}
	if segs[1].Address != "" {
		t.Fatalf("username mention should not carry an address: %+v", segs[1])
	}
}

func TestParse_AddressMention(t *testing.T) {
	segs := Parse("@0xABcdEF123456 hi", Options{})
	if segs[0].Kind != KindMention {
		t.Fatalf("expected mention, got %+v", segs[0])
	}
	if segs[0].Address != "0xabcdef123456" {
		t.Fatalf("address should be lowercase-normalized, got %q", segs[0].Address)
	}
	if segs[0].Username != "" {
		t.Fatalf("address mention should not carry a username: %+v", segs[0])
	}
}

func TestParse_CollectionReference(t *testing.T) {
	segs := Parse("check out #cool-cats today", Options{})
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[1].Kind != KindCollection || segs[1].CollectionSlug != "cool-cats" {
		t.Fatalf("expected collection cool-cats, got %+v", segs[1])
	}
}

func TestParse_AssetReference_DefaultsToChannelContract(t *testing.T) {
	opts := Options{ChannelContractAddress: "0xDEADBEEF00"}
	segs := Parse("#bayc:42", opts)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	seg := segs[0]
	if seg.Kind != KindAsset {
		t.Fatalf("expected asset, got %+v", seg)
	}
	if seg.CollectionSlug != "bayc" || seg.TokenID != "42" {
		t.Fatalf("unexpected asset fields: %+v", seg)
	}
	if seg.CollectionAddress != "0xdeadbeef00" {
		t.Fatalf("asset should default to the channel contract, got %q", seg.CollectionAddress)
	}
}

func TestParse_AssetReference_ExplicitAddress(t *testing.T) {
	segs := Parse("#0xABC123:7", Options{ChannelContractAddress: "0xFFFF00"})
	seg := segs[0]
	if seg.Kind != KindAsset || seg.TokenID != "7" {
		t.Fatalf("expected asset with token 7, got %+v", seg)
	}
	if seg.CollectionAddress != "0xabc123" {
		t.Fatalf("explicit address should win over the channel default, got %q", seg.CollectionAddress)
	}
	if seg.CollectionSlug != "" {
		t.Fatalf("explicit-address asset has no slug: %+v", seg)
	}
}

// Scenario: "gm @0x... check #bayc:42" parses into text, mention, text, asset.
func TestParse_MixedContent(t *testing.T) {
	input := "gm @0xABCDEF12345678 check #bayc:42"
	segs := Parse(input, Options{ChannelContractAddress: "0x1111"})
	if len(segs) != 4 {
		t.Fatalf("expected 4 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Kind != KindText || segs[0].Raw != "gm " {
		t.Fatalf("segment 0: %+v", segs[0])
	}
	if segs[1].Kind != KindMention || segs[1].Address != "0xabcdef12345678" {
		t.Fatalf("segment 1: %+v", segs[1])
	}
	if segs[2].Kind != KindText || segs[2].Raw != " check " {
		t.Fatalf("segment 2: %+v", segs[2])
	}
	if segs[3].Kind != KindAsset || segs[3].CollectionSlug != "bayc" || segs[3].TokenID != "42" {
		t.Fatalf("segment 3: %+v", segs[3])
	}
}

func TestParse_MalformedReferencesDegradeToText(t *testing.T) {
	cases := []string{
		"@",
		"#",
		"@ alice",
		"# tag",
		"email user@example.com stays text",
		"##double",
		"trailing @",
	}
	for _, input := range cases {
		for _, seg := range Parse(input, Options{}) {
			if seg.Kind != KindText {
				t.Errorf("input %q: expected only text segments, got %+v", input, seg)
			}
		}
	}
}

func TestParse_BareColonNotPartOfReference(t *testing.T) {
	segs := Parse("#bayc: hello", Options{})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Kind != KindCollection || segs[0].Raw != "#bayc" {
		t.Fatalf("segment 0: %+v", segs[0])
	}
	if segs[1].Raw != ": hello" {
		t.Fatalf("segment 1: %+v", segs[1])
	}
}

// Re-assembling all raw spans must reproduce the input exactly, for any
// input.
func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"gm @alice check #bayc:42 and #0xABC123:7 cc @0xABCDEF12345678",
		"@@@###",
		"#: @: #x: 9",
		"unicode ✨ @bob #cats:1 ✨",
		"newlines\n@alice\n#bayc\n",
	}
	for _, input := range inputs {
		var sb strings.Builder
		for _, seg := range Parse(input, Options{ChannelContractAddress: "0xAA"}) {
			sb.WriteString(seg.Raw)
		}
		if sb.String() != input {
			t.Errorf("round trip failed:\n  in:  %q\n  out: %q", input, sb.String())
		}
	}
}

func TestScanner_Restartable(t *testing.T) {
	input := "hi @alice"
	first := Parse(input, Options{})
	second := Parse(input, Options{})
	if len(first) != len(second) {
		t.Fatalf("restarted parse differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("segment %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
