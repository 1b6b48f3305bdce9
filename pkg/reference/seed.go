// Package reference loads and serves nutrient and fertilizer reference data.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"cropcheck/entities"
)

type Seed struct {
	Nutrients   []entities.NutrientDeficiency
	Fertilizers []entities.Fertilizer
}

const (
	kindNutrient   = "nutrient"
	kindFertilizer = "fertilizer"
)

// LoadSeedFile reads reference rows from a .csv, .xlsx or .html file.
//
// CSV files carry a kind column (nutrient|fertilizer). XLSX workbooks use one
// sheet per kind, and HTML documents one table per kind, recognised by
// data-kind, id or caption.
func LoadSeedFile(path string) (Seed, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return Seed{}, err
		}
		defer f.Close()
		return ParseCSV(f)
	case ".xlsx":
		x, err := excelize.OpenFile(path)
		if err != nil {
			return Seed{}, err
		}
		defer x.Close()
		return parseWorkbook(x)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return Seed{}, err
		}
		defer f.Close()
		return ParseHTML(f)
	default:
		return Seed{}, fmt.Errorf("unsupported seed file %q", path)
	}
}

func ParseCSV(r io.Reader) (Seed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	head, err := cr.Read()
	if err != nil {
		return Seed{}, err
	}
	cols := newColumns(head)
	cKind := cols.find("kind", "type", "table")
	if cKind == -1 {
		return Seed{}, fmt.Errorf("seed csv missing kind column; found headers: %v", head)
	}

	var s Seed
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Seed{}, err
		}
		s.add(kindOf(cell(rec, cKind)), cols, rec)
	}
	return s, s.validate()
}

func parseWorkbook(x *excelize.File) (Seed, error) {
	var s Seed
	for _, sheet := range x.GetSheetList() {
		kind := kindOf(sheet)
		if kind == "" {
			continue
		}
		rows, err := x.GetRows(sheet)
		if err != nil {
			return Seed{}, err
		}
		if len(rows) < 2 {
			continue
		}
		cols := newColumns(rows[0])
		for _, rec := range rows[1:] {
			s.add(kind, cols, rec)
		}
	}
	return s, s.validate()
}

func ParseHTML(r io.Reader) (Seed, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Seed{}, err
	}
	var s Seed
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		label, _ := tbl.Attr("data-kind")
		if label == "" {
			label, _ = tbl.Attr("id")
		}
		if label == "" {
			label = tbl.Find("caption").First().Text()
		}
		kind := kindOf(label)
		if kind == "" {
			return
		}

		var head []string
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if th := tr.Find("th"); th.Length() > 0 && head == nil {
				th.Each(func(_ int, c *goquery.Selection) { head = append(head, strings.TrimSpace(c.Text())) })
				return
			}
			var rec []string
			tr.Find("td").Each(func(_ int, c *goquery.Selection) { rec = append(rec, strings.TrimSpace(c.Text())) })
			if len(rec) > 0 && head != nil {
				s.add(kind, newColumns(head), rec)
			}
		})
	})
	return s, s.validate()
}

type columns map[string]int

func normHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

func newColumns(head []string) columns {
	c := columns{}
	for i, h := range head {
		c[normHeader(h)] = i
	}
	return c
}

func (c columns) find(keys ...string) int {
	for _, k := range keys {
		if idx, ok := c[normHeader(k)]; ok {
			return idx
		}
	}
	return -1
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func kindOf(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "nutrient"):
		return kindNutrient
	case strings.Contains(l, "fert"):
		return kindFertilizer
	}
	return ""
}

func (s *Seed) add(kind string, cols columns, rec []string) {
	switch kind {
	case kindNutrient:
		code := cell(rec, cols.find("nutrient_code", "code"))
		if code == "" {
			return
		}
		s.Nutrients = append(s.Nutrients, entities.NutrientDeficiency{
			NutrientCode:    code,
			NutrientName:    cell(rec, cols.find("nutrient_name", "name")),
			CommonSymptoms:  cell(rec, cols.find("common_symptoms", "symptoms")),
			DiagnosticNotes: cell(rec, cols.find("diagnostic_notes", "notes")),
		})
	case kindFertilizer:
		name := cell(rec, cols.find("fert_name", "name"))
		if name == "" {
			return
		}
		f := entities.Fertilizer{
			FertName:    name,
			Formulation: cell(rec, cols.find("formulation", "formula", "npk")),
			Description: cell(rec, cols.find("description", "notes")),
		}
		if id, err := strconv.Atoi(cell(rec, cols.find("fertilizer_id", "id"))); err == nil && id > 0 {
			f.FertilizerID = uint(id)
		}
		s.Fertilizers = append(s.Fertilizers, f)
	}
}

func (s Seed) validate() error {
	if len(s.Nutrients) == 0 && len(s.Fertilizers) == 0 {
		return errors.New("seed contains no reference rows")
	}
	seen := map[string]bool{}
	for _, n := range s.Nutrients {
		if seen[n.NutrientCode] {
			return fmt.Errorf("duplicate nutrient code %q", n.NutrientCode)
		}
		seen[n.NutrientCode] = true
	}
	return nil
}

// Defaults is the built-in reference set used when the store is empty.
func Defaults() Seed {
	return Seed{
		Nutrients: []entities.NutrientDeficiency{
			{NutrientCode: "N", NutrientName: "Nitrogen", CommonSymptoms: "Uniform yellowing of older leaves", DiagnosticNotes: "Starts at the base of the canopy"},
			{NutrientCode: "P", NutrientName: "Phosphorus", CommonSymptoms: "Dull, dark leaves with purple tint", DiagnosticNotes: "Slow flush growth"},
			{NutrientCode: "K", NutrientName: "Potassium", CommonSymptoms: "Scorched leaf margins on mature leaves", DiagnosticNotes: "Often after heavy pod load"},
			{NutrientCode: "Ca", NutrientName: "Calcium", CommonSymptoms: "Necrotic young leaf tips", DiagnosticNotes: "Common on acid soils"},
			{NutrientCode: "Mg", NutrientName: "Magnesium", CommonSymptoms: "Interveinal chlorosis on older leaves", DiagnosticNotes: "Green band along the midrib"},
			{NutrientCode: "S", NutrientName: "Sulfur", CommonSymptoms: "Pale young leaves", DiagnosticNotes: "Resembles N deficiency on new growth"},
			{NutrientCode: "Fe", NutrientName: "Iron", CommonSymptoms: "Interveinal chlorosis on young leaves", DiagnosticNotes: "Veins stay green"},
			{NutrientCode: "Zn", NutrientName: "Zinc", CommonSymptoms: "Small, narrow, wavy young leaves", DiagnosticNotes: "Rosetting of new flush"},
			{NutrientCode: "B", NutrientName: "Boron", CommonSymptoms: "Distorted young leaves, dieback of tips", DiagnosticNotes: "Poor pod set"},
			{NutrientCode: "Mn", NutrientName: "Manganese", CommonSymptoms: "Mottled chlorosis on young leaves", DiagnosticNotes: "Common on limed soils"},
			{NutrientCode: "Cu", NutrientName: "Copper", CommonSymptoms: "Wilting and bleached young leaves", DiagnosticNotes: "Rare on mineral soils"},
		},
		Fertilizers: []entities.Fertilizer{
			{FertName: "Urea", Formulation: "46-0-0", Description: "Urea 46-0-0: apply in two splits at the start and end of the rainy season."},
			{FertName: "Ammonium sulfate", Formulation: "21-0-0", Description: "Supplies nitrogen and sulfur; acidifies soil over time."},
			{FertName: "Triple superphosphate", Formulation: "0-46-0", Description: ""},
			{FertName: "Diammonium phosphate", Formulation: "18-46-0", Description: "DAP 18-46-0 for phosphorus with some nitrogen."},
			{FertName: "Muriate of potash", Formulation: "0-0-60", Description: "Potassium chloride 0-0-60: broadcast around the drip line."},
			{FertName: "Dolomite", Formulation: "", Description: "Dolomitic lime supplying calcium and magnesium."},
			{FertName: "Zinc sulfate", Formulation: "ZnSO4", Description: "Foliar zinc sulfate 0.2-0.5% on new flush."},
			{FertName: "Borax", Formulation: "Na2B4O7", Description: "Use sparingly; 10-20 g per tree."},
		},
	}
}
