package utils

import "strings"

// Interpolate replaces every {{name}} token in tpl with values[name].
// Values are inserted verbatim. Tokens without a value are left as they are.
func Interpolate(tpl string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(tpl, "{{") {
		return tpl
	}
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
