package profile

import "fmt"

// DefaultProfileID is the well-known profile activated when no persisted
// active id resolves.
const DefaultProfileID = "builtin-ru-en"

// Key rows of the ЙЦУКЕН and QWERTY layouts, position for position,
// followed by the backtick key.
const (
	ruLower = "йцукенгшщзхъфывапролджэячсмитьбюё"
	ruUpper = "ЙЦУКЕНГШЩЗХЪФЫВАПРОЛДЖЭЯЧСМИТЬБЮЁ"
	ukLower = "йцукенгшщзхїфівапролджєячсмитьбюґ"
	ukUpper = "ЙЦУКЕНГШЩЗХЇФІВАПРОЛДЖЄЯЧСМИТЬБЮҐ"
	enLower = "qwertyuiop[]asdfghjkl;'zxcvbnm,.`"
	enUpper = "QWERTYUIOP{}ASDFGHJKL:\"ZXCVBNM<>~"
)

// Builtins returns fresh copies of the built-in profiles in display order.
func Builtins() []Profile {
	return []Profile{
		{
			ID:      DefaultProfileID,
			Name:    "Russian ⇄ English",
			Mapping: zipLayouts(ruLower+ruUpper, enLower+enUpper),
		},
		{
			ID:      "builtin-uk-en",
			Name:    "Ukrainian ⇄ English",
			Mapping: zipLayouts(ukLower+ukUpper, enLower+enUpper),
		},
	}
}

func zipLayouts(from, to string) map[string]string {
	src, dst := []rune(from), []rune(to)
	if len(src) != len(dst) {
		panic(fmt.Sprintf("profile: layout rows differ in length: %d vs %d", len(src), len(dst)))
	}
	m := make(map[string]string, len(src))
	for i := range src {
		m[string(src[i])] = string(dst[i])
	}
	return m
}
