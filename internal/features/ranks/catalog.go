// Package ranks описывает лестницу рангов, встроенные наборы значков и правила
// выбора значка. Всё в пакете: чистые функции без состояния, каталог
// читается один раз из встроенного catalog.yaml.
package ranks

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Icon: значок, который участник может выбрать для своего ранга.
type Icon struct {
	Name     string `yaml:"name" json:"name"`
	Emoji    string `yaml:"icon" json:"icon"`
	Category string `yaml:"category" json:"category,omitempty"` // пусто у пользовательских значков
}

// Rank: ступень лестницы из каталога.
type Rank struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Min   int    `yaml:"min"`
	Color string `yaml:"color"`
	Icon  string `yaml:"icon"`
	Badge string `yaml:"badge"`
	Icons []Icon `yaml:"icons"`
}

type catalog struct {
	Ranks    []Rank `yaml:"ranks"`
	Unranked Rank   `yaml:"unranked"`
}

var (
	ladder   []Rank // по убыванию Min
	byKey    map[string]Rank
	unranked Rank
)

func init() {
	c, err := parseCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	ladder = c.Ranks
	unranked = c.Unranked
	byKey = make(map[string]Rank, len(ladder))
	for _, r := range ladder {
		byKey[r.Key] = r
	}
}

func parseCatalog(data []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("ranks: разбор каталога: %w", err)
	}
	if len(c.Ranks) == 0 {
		return nil, fmt.Errorf("ranks: в каталоге нет рангов")
	}

	seen := make(map[string]struct{}, len(c.Ranks))
	for _, r := range c.Ranks {
		if r.Key == "" || r.Min < 1 {
			return nil, fmt.Errorf("ranks: некорректный ранг %q (min=%d)", r.Key, r.Min)
		}
		if _, dup := seen[r.Key]; dup {
			return nil, fmt.Errorf("ranks: ранг %q объявлен дважды", r.Key)
		}
		seen[r.Key] = struct{}{}
	}

	sort.SliceStable(c.Ranks, func(i, j int) bool { return c.Ranks[i].Min > c.Ranks[j].Min })
	return &c, nil
}

// Ladder возвращает копию лестницы рангов по убыванию порога.
func Ladder() []Rank {
	out := make([]Rank, len(ladder))
	copy(out, ladder)
	return out
}

// Lookup ищет ранг по ключу.
func Lookup(key string) (Rank, bool) {
	r, ok := byKey[key]
	return r, ok
}

// Customizable сообщает, есть ли у ранга встроенный набор значков.
// Только для таких рангов разрешены свои значки и свои границы.
func Customizable(key string) bool {
	r, ok := byKey[key]
	return ok && len(r.Icons) > 0
}

// CustomizableKeys: ключи рангов со значками, по убыванию порога.
func CustomizableKeys() []string {
	var keys []string
	for _, r := range ladder {
		if len(r.Icons) > 0 {
			keys = append(keys, r.Key)
		}
	}
	return keys
}
