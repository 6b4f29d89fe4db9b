package roles

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Keywords maps each role to the lowercase substrings that identify its
// column. Order matters: earlier keywords win ties within one column scan.
type Keywords map[Role][]string

// DefaultKeywords covers the Kela reimbursement feeds (Finnish headers) and
// the English-labelled variants of the same data.
func DefaultKeywords() Keywords {
	return Keywords{
		Provider: {"provider", "service", "company", "palvelu", "tuottaja", "toimija", "yritys"},
		Year:     {"year", "release", "vuosi"},
		Amount:   {"gross", "revenue", "box", "korva", "euro", "summa", "maara", "amount", "sum"},
	}
}

// keywordFile is the YAML shape of a keyword override file.
type keywordFile struct {
	Provider []string `yaml:"provider"`
	Year     []string `yaml:"year"`
	Amount   []string `yaml:"amount"`
}

// LoadKeywords reads a YAML keyword file and merges it over the defaults.
// A role listed in the file replaces that role's default set entirely;
// roles absent from the file keep the defaults.
func LoadKeywords(path string) (Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roles: read keyword file %s", path)
	}

	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, eris.Wrapf(err, "roles: parse keyword file %s", path)
	}

	kw := DefaultKeywords()
	if len(kf.Provider) > 0 {
		kw[Provider] = kf.Provider
	}
	if len(kf.Year) > 0 {
		kw[Year] = kf.Year
	}
	if len(kf.Amount) > 0 {
		kw[Amount] = kf.Amount
	}
	return kw, nil
}
