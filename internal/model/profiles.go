package model

import "sort"

// Profile describes a professor persona used to shape explanations and
// evaluations. Profiles are read-only static configuration shared across
// sessions.
type Profile struct {
	Style             string
	Background        string
	VerificationStyle string
}

var profiles = map[string]Profile{
	"Andrew NG": {
		Style:             "Focuses on practical applications and real-world examples. Breaks down complex ML concepts into digestible pieces. Often uses analogies and visual explanations.",
		Background:        "Expert in Machine Learning and AI. Known for making complex concepts accessible.",
		VerificationStyle: "Uses step-by-step verification of understanding, often asking students to explain concepts back.",
	},
	"David Malan": {
		Style:             "Energetic and engaging. Uses live demonstrations and interactive examples. Builds concepts from first principles.",
		Background:        "Computer Science educator known for CS50. Expert at making technical concepts approachable.",
		VerificationStyle: "Uses 'show of hands' style questions and encourages active participation.",
	},
	"John Guttag": {
		Style:             "Methodical and thorough. Emphasizes theoretical foundations while connecting to practical applications. Uses mathematical reasoning.",
		Background:        "Expert in Computer Science and Programming. Known for rigorous but clear explanations.",
		VerificationStyle: "Asks probing questions to verify deep understanding of concepts.",
	},
}

// ProfileByName looks up a professor profile.
func ProfileByName(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames returns all known professor names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
