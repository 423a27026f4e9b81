package ranks

import "sort"

// MinIconStreak: с какого стрика участник может выбирать значок.
const MinIconStreak = 10

// UnrankedKey: ключ служебного ранга для стрика ниже всех порогов.
const UnrankedKey = "unranked"

// Bound: премиум-границы ранга. Max == nil означает «без верхней границы».
type Bound struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

// Contains проверяет, попадает ли стрик в [Min, Max].
func (b Bound) Contains(streak int) bool {
	if streak < b.Min {
		return false
	}
	return b.Max == nil || streak <= *b.Max
}

// Overrides: премиум-настройки сообщества, влияющие на ранги и значки.
type Overrides struct {
	Enabled     bool
	Bounds      map[string]Bound
	CustomIcons map[string][]Icon
}

// RankInfo: результат определения ранга для отображения.
type RankInfo struct {
	Key   string
	Title string
	Color string
	Icon  string
	Badge string
	Min   int
}

func infoOf(r Rank) RankInfo {
	return RankInfo{Key: r.Key, Title: r.Title, Color: r.Color, Icon: r.Icon, Badge: r.Badge, Min: r.Min}
}

// Resolve определяет ранг по стрику.
//
// Если у сообщества включён премиум с границами, сначала проверяются они:
// по убыванию Min, первая подходящая граница выигрывает. Границы для
// неизвестных ключей игнорируются. Иначе используется стандартная лестница.
// Стрик ниже всех порогов даёт служебный ранг unranked.
func Resolve(streak int, o Overrides) RankInfo {
	if o.Enabled && len(o.Bounds) > 0 {
		type candidate struct {
			rank  Rank
			bound Bound
		}
		// обход в порядке лестницы, чтобы при равных Min порядок был стабильным
		var candidates []candidate
		for _, r := range ladder {
			if b, ok := o.Bounds[r.Key]; ok {
				candidates = append(candidates, candidate{rank: r, bound: b})
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].bound.Min > candidates[j].bound.Min
		})
		for _, c := range candidates {
			if c.bound.Contains(streak) {
				info := infoOf(c.rank)
				info.Min = c.bound.Min
				return info
			}
		}
	}

	for _, r := range ladder {
		if streak >= r.Min {
			return infoOf(r)
		}
	}
	return infoOf(unranked)
}

// Candidates возвращает значки, доступные для ранга: сначала встроенные, затем
// пользовательские (только при включённом премиуме).
func Candidates(key string, o Overrides) []Icon {
	var out []Icon
	if r, ok := byKey[key]; ok {
		out = append(out, r.Icons...)
	}
	if o.Enabled {
		out = append(out, o.CustomIcons[key]...)
	}
	return out
}

// ResolveDisplayIcon возвращает ранг с учётом выбранного значка.
// Ниже MinIconStreak или без выбора: значок ранга по умолчанию. Выбор,
// которого нет среди кандидатов текущего ранга, молча игнорируется.
func ResolveDisplayIcon(streak int, selected string, o Overrides) RankInfo {
	base := Resolve(streak, o)
	if selected == "" || streak < MinIconStreak {
		return base
	}
	for _, icon := range Candidates(base.Key, o) {
		if icon.Emoji == selected {
			base.Icon = selected
			return base
		}
	}
	return base
}

// MigrateIcon подбирает значок той же категории в новом ранге.
//
// Старый значок ищется во всех встроенных наборах. Найден: возвращается
// значок нового ранга с той же категорией, а если её нет, то первый значок
// нового ранга. Не найден нигде (или у нового ранга нет значков): ok=false,
// решение о сбросе выбора остаётся за вызывающим.
func MigrateIcon(oldIcon, newKey string) (string, bool) {
	target, ok := byKey[newKey]
	if !ok || len(target.Icons) == 0 {
		return "", false
	}

	category, found := categoryOf(oldIcon)
	if !found {
		return "", false
	}
	for _, icon := range target.Icons {
		if icon.Category == category {
			return icon.Emoji, true
		}
	}
	return target.Icons[0].Emoji, true
}

func categoryOf(emoji string) (string, bool) {
	for _, r := range ladder {
		for _, icon := range r.Icons {
			if icon.Emoji == emoji {
				return icon.Category, true
			}
		}
	}
	return "", false
}
