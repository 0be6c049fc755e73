// Package codename builds the three-part display names handed out at
// sign-up and the avatar initials derived from them.
package codename

import (
	"math/rand/v2"
	"unicode"
	"unicode/utf8"
)

// Word lists. No word appears in more than one list.
var (
	Adjectives = []string{
		"Silent", "Swift", "Phantom", "Reckless", "Cunning",
		"Hollow", "Brazen", "Veiled", "Gilded", "Sly",
		"Midnight", "Crooked", "Furtive", "Daring", "Elusive",
		"Wicked", "Stealthy", "Crimson", "Iron", "Slick",
	}
	Nouns = []string{
		"Fox", "Viper", "Wraith", "Ghost", "Raven",
		"Jackal", "Lynx", "Cobra", "Crow", "Wolf",
		"Panther", "Falcon", "Serpent", "Hound", "Hawk",
		"Mamba", "Coyote", "Osprey", "Ferret", "Kite",
	}
	Roles = []string{
		"Rogue", "Broker", "Cipher", "Fixer", "Courier",
		"Grifter", "Lockpick", "Scout", "Lookout", "Cleaner",
		"Forger", "Handler", "Runner", "Vault", "Trigger",
		"Shade", "Switch", "Operator", "Knife", "Wrench",
	}
)

// Source is the randomness Generate draws from. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generate returns adjective+noun+role picked independently and uniformly
// from src. A nil src uses the process-wide generator.
func Generate(src Source) string {
	if src == nil {
		src = globalSource{}
	}
	return Adjectives[src.IntN(len(Adjectives))] +
		Nouns[src.IntN(len(Nouns))] +
		Roles[src.IntN(len(Roles))]
}

// Initials returns the first two uppercase letters of name, or the
// uppercased first character when name has fewer than two.
func Initials(name string) string {
	var upper []rune
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			upper = append(upper, r)
			if len(upper) == 2 {
				return string(upper)
			}
		}
	}
	first, _ := utf8.DecodeRuneInString(name)
	if first == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(first))
}
