package csvimport

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FieldKind is the meaning assigned to a spreadsheet column
type FieldKind string

const (
	FieldID          FieldKind = "id"
	FieldQuantity    FieldKind = "quantity"
	FieldWarehouse   FieldKind = "warehouse"
	FieldName        FieldKind = "name"
	FieldMake        FieldKind = "make"
	FieldModel       FieldKind = "model"
	FieldDescription FieldKind = "description"
	FieldSize        FieldKind = "size"
	FieldSeason      FieldKind = "season"
	FieldColor       FieldKind = "color"
	FieldPattern     FieldKind = "pattern"
	FieldMinQuantity FieldKind = "min_quantity"
	FieldWBSKU       FieldKind = "wb_sku"
	FieldOzonSKU     FieldKind = "ozon_sku"
	FieldYMSKU       FieldKind = "ym_sku"
	FieldVoxel       FieldKind = "voxel"
	// FieldExtra marks a column with no known meaning
	FieldExtra FieldKind = "extra"
)

// Field is a classified header cell
type Field struct {
	Kind FieldKind
	// Name is the normalized header text
	Name string
}

// IsKnown reports whether the column maps to a record field
func (f Field) IsKnown() bool {
	return f.Kind != FieldExtra && f.Kind != ""
}

var headerSynonyms = map[FieldKind][]string{
	FieldID: {
		"артикул", "артикул продавца", "артикул товара", "id", "artikul", "sku",
		"код товара", "vendor code", "vendorcode", "offer id", "item id", "item code",
	},
	FieldQuantity: {
		"количество", "кол-во", "остаток", "остатки", "qty", "quantity",
		"stock", "amount", "count", "доступно",
	},
	FieldWarehouse: {"склад", "название склада", "наименование склада", "warehouse", "warehouse name", "whs"},
	FieldName:      {"наименование", "название", "name", "title", "product name", "товар"},
	FieldMake:      {"make", "brand", "бренд", "производитель"},
	FieldModel:     {"model", "модель"},
	FieldDescription: {
		"description", "описание",
	},
	FieldSize:        {"size", "размер"},
	FieldSeason:      {"season", "сезон"},
	FieldColor:       {"color", "colour", "цвет"},
	FieldPattern:     {"pattern", "узор", "рисунок"},
	FieldMinQuantity: {"min qty", "min quantity", "минимальный остаток", "мин. остаток", "минимум"},
	FieldWBSKU:       {"wb sku", "артикул wb", "sku wb", "баркод", "barcode"},
	FieldOzonSKU:     {"ozon sku", "артикул ozon", "sku ozon", "offer id ozon"},
	FieldYMSKU:       {"ym sku", "артикул ym", "артикул яндекс", "shop sku", "shopsku"},
	FieldVoxel:       {"ячейка", "voxel", "voxel id", "cell", "location", "bin", "место"},
}

// minContainLen keeps short synonyms like "id" from matching inside
// unrelated words
const minContainLen = 4

type synonym struct {
	text string
	kind FieldKind
}

var (
	exactSynonyms   map[string]FieldKind
	containSynonyms []synonym
	folder          = cases.Fold()
)

func init() {
	exactSynonyms = make(map[string]FieldKind)
	for kind, words := range headerSynonyms {
		for _, w := range words {
			n := NormalizeHeader(w)
			exactSynonyms[n] = kind
			if utf8.RuneCountInString(n) >= minContainLen {
				containSynonyms = append(containSynonyms, synonym{text: n, kind: kind})
			}
		}
	}
	// Longest first; ties by text keep the order stable.
	slices.SortFunc(containSynonyms, func(a, b synonym) int {
		if c := cmp.Compare(utf8.RuneCountInString(b.text), utf8.RuneCountInString(a.text)); c != 0 {
			return c
		}
		return cmp.Compare(a.text, b.text)
	})
}

// NormalizeHeader applies NFKC, folds case, maps "ё" to "е" and underscores
// to spaces, and collapses whitespace. Trailing ":" and "*" are dropped.
func NormalizeHeader(cell string) string {
	s := folder.String(norm.NFKC.String(cell))
	s = strings.NewReplacer("ё", "е", "_", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ":* ")
}

// ClassifyHeader maps a header cell to a field. An exact synonym wins, then
// the longest synonym contained in the cell. Anything else is FieldExtra.
func ClassifyHeader(cell string) Field {
	name := NormalizeHeader(cell)
	if name == "" {
		return Field{Kind: FieldExtra}
	}
	if kind, ok := exactSynonyms[name]; ok {
		return Field{Kind: kind, Name: name}
	}
	for _, syn := range containSynonyms {
		if strings.Contains(name, syn.text) {
			return Field{Kind: syn.kind, Name: name}
		}
	}
	return Field{Kind: FieldExtra, Name: name}
}
