package locale

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var catalogs embed.FS

// Manager resolves translation keys against embedded YAML catalogs. Each
// catalog file is named after its language code (en.yaml, fr.yaml, ...);
// nested mappings are flattened into dotted keys at load time. Lookups for
// an unknown language fall back to the default language, and an unknown key
// resolves to the key itself so a missing translation is visible instead of
// silent.
type Manager struct {
	translations map[string]map[string]string
	fallback     string
}

func New(fallback string) (*Manager, error) {
	entries, err := catalogs.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	m := &Manager{
		translations: make(map[string]map[string]string),
		fallback:     fallback,
	}
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), ".yaml")
		content, err := catalogs.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, err
		}
		var root map[string]any
		if err := yaml.Unmarshal(content, &root); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", entry.Name(), err)
		}
		flat := make(map[string]string)
		flatten("", root, flat)
		m.translations[lang] = flat
	}

	if _, ok := m.translations[fallback]; !ok {
		return nil, fmt.Errorf("no catalog for fallback language %q", fallback)
	}
	return m, nil
}

// Get renders the translation for key in lang, applying args with Sprintf
// when the template has placeholders.
func (m *Manager) Get(lang, key string, args ...any) string {
	catalog, ok := m.translations[lang]
	if !ok {
		catalog = m.translations[m.fallback]
	}
	template, ok := catalog[key]
	if !ok {
		template, ok = m.translations[m.fallback][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// Supported reports whether a catalog exists for the language code.
func (m *Manager) Supported(lang string) bool {
	_, ok := m.translations[lang]
	return ok
}

// Languages lists the loaded language codes in sorted order.
func (m *Manager) Languages() []string {
	langs := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}
