package grammar

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGenSLR1Automaton(t *testing.T) {
	tests := []struct {
		caption    string
		def        *Definition
		lookAheads map[string][]string
	}{
		{
			caption: "productions contain empty productions",
			def:     nullableDef(),
			lookAheads: map[string][]string{
				"s' → ・ s | a → ・":          {"bar", "baz"},
				"s' → s ・ | s' → s ・":       {"<eof>"},
				"s → a ・ b c | b → ・":       {"baz"},
				"a → foo ・ | a → foo ・":     {"bar", "baz"},
				"b → bar ・ | b → bar ・":     {"baz"},
				"s → a b c ・ | s → a b c ・": {"<eof>"},
				"c → baz ・ | c → baz ・":     {"<eof>"},
			},
		},
		{
			caption: "look-ahead symbols are FOLLOW of the LHS",
			def:     assignDef(),
			lookAheads: map[string][]string{
				"s' → s ・ | s' → s ・":              {"<eof>"},
				"r → l ・; s → l ・ '=' r | r → l ・": {"<eof>", "'='"},
				"s → r ・ | s → r ・":                {"<eof>"},
				"l → id ・ | l → id ・":              {"<eof>", "'='"},
				"l → '*' r ・ | l → '*' r ・":        {"<eof>", "'='"},
				"r → l ・ | r → l ・":                {"<eof>", "'='"},
				"s → l '=' r ・ | s → l '=' r ・":    {"<eof>"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			gram := buildGrammar(t, tt.def)
			lr0, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol, 0)
			if err != nil {
				t.Fatal(err)
			}
			first, err := genFirstSet(gram.productionSet)
			if err != nil {
				t.Fatal(err)
			}
			follow, err := genFollowSet(gram.productionSet, first, gram.augmentedStartSymbol)
			if err != nil {
				t.Fatal(err)
			}
			slr1, err := genSLR1Automaton(lr0, gram.productionSet, follow)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.lookAheads, lookAheads(t, gram, slr1.lr0Automaton)); diff != "" {
				t.Fatalf("unexpected look-ahead symbols (-want +got):\n%v", diff)
			}
		})
	}
}
