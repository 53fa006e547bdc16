package ledger

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholders used when nothing can be derived from an id
const (
	UnknownMake   = "Unknown Make"
	UnknownModel  = "Unknown Model"
	NoDescription = "No Description"
)

// DisplayFields are the descriptive fields derived from an item id
type DisplayFields struct {
	Make        string
	Model       string
	Description string
	Attributes  Attributes
}

type modelProfile struct {
	description string
	color       string
	size        string
}

// Bedding sets are named "<model> <words...> <season?> <pattern>", e.g.
// "евро макси лето кружева".
var modelProfiles = map[string]modelProfile{
	"1.5":         {description: "Серая", color: "gray", size: "150x200"},
	"2":           {description: "Голубая", color: "blue", size: "200x220"},
	"евро":        {description: "Бежевая", color: "beige", size: "180x220"},
	"евро макси":  {description: "Красная", color: "red", size: "220x240"},
	"наматрасник": {description: "Зеленая", color: "green"},
}

// DeriveDisplayFields decomposes an id into make, model, description and
// attributes. It never fails: anything it cannot derive is replaced by a
// placeholder.
func DeriveDisplayFields(id string) DisplayFields {
	parts := strings.Fields(strings.ToLower(id))
	if len(parts) == 0 {
		return withPlaceholders(DisplayFields{})
	}

	if isMattressCover(parts[0]) {
		return withPlaceholders(deriveMattressCover(parts))
	}

	var f DisplayFields
	switch {
	case parts[0] == "1.5" || parts[0] == "2":
		f.Model = parts[0]
	case parts[0] == "евро" && len(parts) > 1 && parts[1] == "макси":
		f.Model = "Евро Макси"
		parts = parts[1:]
	case parts[0] == "евро":
		f.Model = "Евро"
	default:
		f.Model = upperFirst(parts[0])
	}

	words := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		words = append(words, upperFirst(p))
	}
	f.Make = strings.Join(words, " ")

	if profile, ok := modelProfiles[strings.ToLower(f.Model)]; ok {
		f.Description = profile.description
		f.Attributes.Color = profile.color
		f.Attributes.Size = profile.size
	}

	switch {
	case slices.Contains(parts, "зима"):
		f.Attributes.Season = "зима"
		f.Description = joinDescription(f.Description, "полузакрытая")
	case slices.Contains(parts, "лето"):
		f.Attributes.Season = "лето"
		f.Description = joinDescription(f.Description, "полосочка")
	}

	f.Attributes.Pattern = strings.TrimSpace(stripDigits(parts[len(parts)-1]))
	return withPlaceholders(f)
}

func isMattressCover(head string) bool {
	return strings.HasPrefix(head, "наматрасник.") || strings.HasPrefix(head, "наматрас.")
}

// deriveMattressCover handles "наматрасник.<size> <pattern>" ids
func deriveMattressCover(parts []string) DisplayFields {
	size := ""
	if _, after, ok := strings.Cut(parts[0], "."); ok && after != "" {
		size = after
	} else if len(parts) > 1 {
		size = parts[1]
	}

	pattern := ""
	for _, p := range parts[1:] {
		if p != size && hasCyrillic(p) {
			pattern = p
			break
		}
	}
	if pattern == "" && len(parts) > 2 {
		pattern = parts[2]
	}

	f := DisplayFields{Model: "Наматрасник"}
	f.Attributes.Size = size
	f.Attributes.Pattern = pattern
	if n, err := strconv.Atoi(leadingDigits(size)); err == nil && n >= 160 {
		f.Attributes.Color = "dark-green"
		f.Description = "Темно-зеленый, большой"
	} else {
		f.Attributes.Color = "light-green"
		f.Description = "Салатовый, маленький"
	}
	f.Make = strings.TrimSpace(upperFirst(size) + " " + upperFirst(pattern))
	return f
}

func withPlaceholders(f DisplayFields) DisplayFields {
	if f.Make == "" {
		f.Make = UnknownMake
	}
	if f.Model == "" {
		f.Model = UnknownModel
	}
	if f.Description == "" {
		f.Description = NoDescription
	}
	return f
}

func joinDescription(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return base + ", " + suffix
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
