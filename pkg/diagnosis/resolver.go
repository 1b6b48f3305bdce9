// Package diagnosis turns raw classifier labels into nutrient findings.
package diagnosis

import "strings"

// LabelKind says how a raw label was resolved.
type LabelKind int

const (
	LabelUnknown LabelKind = iota
	LabelNormal
	LabelNutrient
)

// DefaultNormalTokens are labels meaning "no deficiency". "nomal" is a
// misspelling emitted by deployed models.
var DefaultNormalTokens = []string{"normal", "nomal", "healthy", "none", "ok", "ปกติ"}

// DefaultAliases maps element names and symbols to canonical nutrient codes.
var DefaultAliases = map[string]string{
	"nitrogen": "N", "n": "N",
	"phosphorus": "P", "phosphorous": "P", "p": "P",
	"potassium": "K", "k": "K",
	"calcium": "Ca", "ca": "Ca",
	"magnesium": "Mg", "mg": "Mg",
	"sulfur": "S", "sulphur": "S", "s": "S",
	"iron": "Fe", "fe": "Fe",
	"zinc": "Zn", "zn": "Zn",
	"boron": "B", "b": "B",
	"manganese": "Mn", "mn": "Mn",
	"copper": "Cu", "cu": "Cu",
}

// Resolver maps classifier labels onto the nutrient codes known to the store.
type Resolver struct {
	normal  map[string]struct{}
	aliases map[string]string
	valid   map[string]string // lower(code) -> code
}

// NewResolver builds a resolver accepting only validCodes. Nil normal or
// aliases select the defaults.
func NewResolver(validCodes []string, normal []string, aliases map[string]string) *Resolver {
	if normal == nil {
		normal = DefaultNormalTokens
	}
	if aliases == nil {
		aliases = DefaultAliases
	}
	r := &Resolver{
		normal:  make(map[string]struct{}, len(normal)),
		aliases: make(map[string]string, len(aliases)),
		valid:   make(map[string]string, len(validCodes)),
	}
	for _, n := range normal {
		r.normal[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	for k, v := range aliases {
		r.aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, c := range validCodes {
		if c = strings.TrimSpace(c); c != "" {
			r.valid[strings.ToLower(c)] = c
		}
	}
	return r
}

// Resolve returns the canonical code for raw, or ("", kind) when the label
// is a normal token or cannot be mapped onto a whitelisted code.
func (r *Resolver) Resolve(raw string) (string, LabelKind) {
	key := normalizeLabel(raw)
	if key == "" {
		return "", LabelUnknown
	}
	if _, ok := r.normal[key]; ok {
		return "", LabelNormal
	}
	code, ok := r.aliases[key]
	if !ok {
		code = key
	}
	if canon, ok := r.valid[strings.ToLower(code)]; ok {
		return canon, LabelNutrient
	}
	return "", LabelUnknown
}

func normalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, " deficiency")
	s = strings.TrimPrefix(s, "deficiency ")
	s = strings.TrimPrefix(s, "lack of ")
	return strings.TrimSpace(s)
}
