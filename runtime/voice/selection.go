package voice

import "strings"

// Gender names accepted by SpeakOptions and Config.
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

var (
	femaleTokens = []string{"female", "samantha", "victoria", "karen", "moira", "fiona"}
	maleTokens   = []string{"male", "alex", "daniel", "fred", "tom"}
)

// VoiceCriteria is the input to SelectVoice.
type VoiceCriteria struct {
	// Language is a language tag prefix, such as "en" or "en-GB".
	Language string
	// Region is one of UK, GB, AU, IN. Other values skip region matching.
	Region string
	// Gender is "female" or anything else for male.
	Gender string
}

// SelectVoice picks the best voice from voices. It filters by language
// prefix and then prefers a region match, then a gender match, then the
// first remaining voice. It returns nil when no voice matches the
// language, meaning the platform default.
func SelectVoice(voices []Voice, c VoiceCriteria) *Voice {
	var filtered []Voice
	for _, v := range voices {
		if strings.HasPrefix(v.Lang, c.Language) {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	if v := find(filtered, regionMatcher(c.Region)); v != nil {
		return v
	}
	if v := find(filtered, genderMatcher(c.Gender)); v != nil {
		return v
	}
	return &filtered[0]
}

func find(voices []Voice, match func(Voice) bool) *Voice {
	if match == nil {
		return nil
	}
	for i := range voices {
		if match(voices[i]) {
			return &voices[i]
		}
	}
	return nil
}

func regionMatcher(region string) func(Voice) bool {
	switch strings.ToUpper(region) {
	case "UK", "GB":
		return func(v Voice) bool {
			return strings.Contains(v.Name, "UK") || strings.Contains(v.Name, "British") || strings.Contains(v.Lang, "GB")
		}
	case "AU":
		return func(v Voice) bool {
			return strings.Contains(v.Name, "Australia") || strings.Contains(v.Lang, "AU")
		}
	case "IN":
		return func(v Voice) bool {
			return strings.Contains(v.Name, "India") || strings.Contains(v.Lang, "IN")
		}
	default:
		return nil
	}
}

func genderMatcher(gender string) func(Voice) bool {
	female := isFemale(gender)
	tokens := maleTokens
	if female {
		tokens = femaleTokens
	}
	return func(v Voice) bool {
		name := strings.ToLower(v.Name)
		if !female && strings.Contains(name, "female") {
			return false
		}
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				return true
			}
		}
		return false
	}
}

func isFemale(gender string) bool {
	return strings.EqualFold(gender, GenderFemale)
}

// languagePrefix returns the primary subtag of tag, "en" when tag is empty.
func languagePrefix(tag string) string {
	if i := strings.IndexByte(tag, '-'); i != -1 {
		tag = tag[:i]
	}
	if tag == "" {
		return "en"
	}
	return tag
}
