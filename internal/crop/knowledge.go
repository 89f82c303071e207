package crop

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed data/crops.json
var embeddedKnowledgeBase []byte

// defaultText holds the "no information" description per language.
var defaultText = map[string]string{
	"en": "No information is available for this crop yet.",
	"hi": "इस फसल के लिए अभी कोई जानकारी उपलब्ध नहीं है।",
	"kn": "ಈ ಬೆಳೆಗೆ ಇನ್ನೂ ಯಾವುದೇ ಮಾಹಿತಿ ಲಭ್ಯವಿಲ್ಲ.",
}

// KnowledgeBase is a read-only, language-keyed lookup of crop metadata.
// It is safe for concurrent use once constructed.
type KnowledgeBase struct {
	crops     map[string]Info
	languages []string
	fallback  Info
}

// LoadKnowledgeBase reads a knowledge base from path. An empty path loads
// the embedded default data.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data := embeddedKnowledgeBase
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading knowledge base: %w", err)
		}
		data = raw
	}
	return ParseKnowledgeBase(data)
}

// ParseKnowledgeBase decodes UTF-8 JSON nested by crop name then language.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var raw map[string]Info
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding knowledge base: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	crops := make(map[string]Info, len(raw))
	langSet := make(map[string]struct{})
	for name, info := range raw {
		crops[normalizeName(name)] = info
		for lang := range info {
			langSet[lang] = struct{}{}
		}
	}

	languages := make([]string, 0, len(langSet))
	for lang := range langSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	return &KnowledgeBase{
		crops:     crops,
		languages: languages,
		fallback:  defaultInfo(languages),
	}, nil
}

// Lookup returns the record for name, case-insensitive. Unknown crops
// return the default record.
func (kb *KnowledgeBase) Lookup(name string) Info {
	if info, ok := kb.crops[normalizeName(name)]; ok {
		return info
	}
	return kb.fallback
}

// Has reports whether the crop is present in the knowledge base.
func (kb *KnowledgeBase) Has(name string) bool {
	_, ok := kb.crops[normalizeName(name)]
	return ok
}

// Languages returns the sorted language codes present in the data.
func (kb *KnowledgeBase) Languages() []string {
	return append([]string(nil), kb.languages...)
}

// Len returns the number of crops.
func (kb *KnowledgeBase) Len() int {
	return len(kb.crops)
}

func defaultInfo(languages []string) Info {
	info := make(Info, len(languages)+1)
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	for _, lang := range languages {
		text, ok := defaultText[lang]
		if !ok {
			text = defaultText["en"]
		}
		info[lang] = Details{
			Description: text,
			Fertilizer:  text,
			Pesticide:   text,
			Image:       DefaultImage,
		}
	}
	return info
}
