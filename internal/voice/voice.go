// Package voice maps a language and a speaker role to a synthesis voice.
package voice

import (
	"strings"

	"github.com/book-expert/podcast-service/internal/core"
)

// Profile is the pair of voices used for one language.
type Profile struct {
	Teacher string
	Student string
}

var builtinProfiles = map[string]Profile{
	"en": {Teacher: "en-US-GuyNeural", Student: "en-US-JennyNeural"},
	"hi": {Teacher: "hi-IN-MadhurNeural", Student: "hi-IN-SwaraNeural"},
	"es": {Teacher: "es-MX-JorgeNeural", Student: "es-MX-DaliaNeural"},
	"fr": {Teacher: "fr-FR-HenriNeural", Student: "fr-FR-DeniseNeural"},
	"de": {Teacher: "de-DE-ConradNeural", Student: "de-DE-KatjaNeural"},
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
}

// Resolver returns voices for (language, speaker) pairs. The zero value is
// not usable; call NewResolver.
type Resolver struct {
	profiles map[string]Profile
}

// NewResolver returns a resolver over the built-in profiles, with overrides
// applied on top. An override that leaves a role empty keeps the built-in
// voice for that role; an override for a new language inherits missing roles
// from English.
func NewResolver(overrides map[string]Profile) *Resolver {
	profiles := make(map[string]Profile, len(builtinProfiles)+len(overrides))
	for code, profile := range builtinProfiles {
		profiles[code] = profile
	}

	for code, override := range overrides {
		code = normalizeCode(code)

		base, ok := profiles[code]
		if !ok {
			base = builtinProfiles[core.DefaultLanguage]
		}

		if override.Teacher != "" {
			base.Teacher = override.Teacher
		}

		if override.Student != "" {
			base.Student = override.Student
		}

		profiles[code] = base
	}

	return &Resolver{profiles: profiles}
}

// Resolve returns the voice for the speaker in the language. Unknown
// languages use English; any speaker other than student uses the teacher voice.
func (r *Resolver) Resolve(language, speaker string) string {
	profile := r.Profile(language)

	if speaker == core.SpeakerStudent {
		return profile.Student
	}

	return profile.Teacher
}

// Profile returns the voice pair for the language, falling back to English.
func (r *Resolver) Profile(language string) Profile {
	profile, ok := r.profiles[normalizeCode(language)]
	if !ok {
		return r.profiles[core.DefaultLanguage]
	}

	return profile
}

// Supported reports whether the language has its own profile.
func (r *Resolver) Supported(language string) bool {
	_, ok := r.profiles[normalizeCode(language)]

	return ok
}

// LanguageName returns the English name of a language code for prompting.
// Unknown codes map to English.
func LanguageName(code string) string {
	name, ok := languageNames[normalizeCode(code)]
	if !ok {
		return languageNames[core.DefaultLanguage]
	}

	return name
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
