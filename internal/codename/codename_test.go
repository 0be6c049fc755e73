package codename

import (
	"math/rand/v2"
	"strings"
	"testing"
)

type scripted []int

func (s *scripted) IntN(n int) int {
	v := (*s)[0]
	*s = (*s)[1:]
	return v % n
}

func TestGenerateConcatenatesOnePerList(t *testing.T) {
	src := scripted{0, 0, 0}
	if got := Generate(&src); got != "SilentFoxRogue" {
		t.Fatalf("Generate() = %q, want SilentFoxRogue", got)
	}
	src = scripted{6, 1, 3}
	if got := Generate(&src); got != "BrazenViperFixer" {
		t.Fatalf("Generate() = %q, want BrazenViperFixer", got)
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(1, 2)))
	b := Generate(rand.New(rand.NewPCG(1, 2)))
	if a != b {
		t.Fatalf("same seed produced %q and %q", a, b)
	}
}

func TestGenerateShapeForManyDraws(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 500; i++ {
		name := Generate(r)
		if !splits(name) {
			t.Fatalf("%q is not adjective+noun+role", name)
		}
	}
	if Generate(nil) == "" {
		t.Fatal("nil source must still produce a codename")
	}
}

func splits(name string) bool {
	for _, a := range Adjectives {
		if !strings.HasPrefix(name, a) {
			continue
		}
		rest := name[len(a):]
		for _, n := range Nouns {
			if !strings.HasPrefix(rest, n) {
				continue
			}
			for _, r := range Roles {
				if rest[len(n):] == r {
					return true
				}
			}
		}
	}
	return false
}

func TestWordListsAreDisjoint(t *testing.T) {
	seen := make(map[string]struct{})
	total := 0
	for _, list := range [][]string{Adjectives, Nouns, Roles} {
		for _, w := range list {
			seen[w] = struct{}{}
			total++
		}
	}
	if len(seen) != total {
		t.Fatalf("lists share words: %d unique of %d", len(seen), total)
	}
	if len(Adjectives) != 20 || len(Nouns) != 20 || len(Roles) != 20 {
		t.Fatalf("unexpected list sizes %d/%d/%d", len(Adjectives), len(Nouns), len(Roles))
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"SilentFoxRogue": "SF",
		"BrazenViper":    "BV",
		"ghostRunner":    "G",
		"ghost":          "G",
		"Ghost":          "G",
		"":               "",
		"éclair":         "É",
	}
	for name, want := range cases {
		if got := Initials(name); got != want {
			t.Fatalf("Initials(%q) = %q, want %q", name, got, want)
		}
	}
}
