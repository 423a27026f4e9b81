package ranks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestResolve_DefaultLadder(t *testing.T) {
	tests := []struct {
		streak int
		want   string
	}{
		{0, UnrankedKey},
		{-3, UnrankedKey},
		{1, "novice"},
		{9, "novice"},
		{10, "bronze"},
		{19, "bronze"},
		{20, "silver"},
		{49, "silver"},
		{50, "gold"},
		{99, "gold"},
		{100, "diamond"},
		{5000, "diamond"},
	}

	for _, tt := range tests {
		got := Resolve(tt.streak, Overrides{})
		assert.Equal(t, tt.want, got.Key, "streak=%d", tt.streak)
	}
}

func TestResolve_MonotonicOnDefaultLadder(t *testing.T) {
	order := map[string]int{UnrankedKey: 0}
	for i, r := range Ladder() {
		order[r.Key] = len(Ladder()) - i
	}

	prev := -1
	for s := 0; s <= 150; s++ {
		info := Resolve(s, Overrides{})
		tier := order[info.Key]
		require.GreaterOrEqual(t, tier, prev, "streak=%d", s)
		prev = tier

		assert.Equal(t, s < 1, info.Key == UnrankedKey, "streak=%d", s)
	}
}

func TestResolve_UnrankedSentinel(t *testing.T) {
	info := Resolve(0, Overrides{})
	assert.Equal(t, "⚪", info.Icon)
	assert.Equal(t, "#808080", info.Color)
	assert.Equal(t, 0, info.Min)
}

func TestResolve_PremiumBounds(t *testing.T) {
	o := Overrides{
		Enabled: true,
		Bounds: map[string]Bound{
			"bronze":  {Min: 3, Max: intPtr(6)},
			"silver":  {Min: 7, Max: intPtr(14)},
			"diamond": {Min: 15},
			"unknown": {Min: 1},
		},
	}

	assert.Equal(t, "bronze", Resolve(3, o).Key)
	assert.Equal(t, 3, Resolve(3, o).Min)
	assert.Equal(t, "silver", Resolve(10, o).Key)
	assert.Equal(t, "diamond", Resolve(15, o).Key)
	assert.Equal(t, "diamond", Resolve(900, o).Key)

	// ниже всех границ: стандартная лестница
	assert.Equal(t, "novice", Resolve(2, o).Key)
	assert.Equal(t, UnrankedKey, Resolve(0, o).Key)

	// цвета и значки берутся из каталога
	silver, _ := Lookup("silver")
	assert.Equal(t, silver.Color, Resolve(10, o).Color)
	assert.Equal(t, silver.Icon, Resolve(10, o).Icon)
}

func TestResolve_PremiumDisabledIgnoresBounds(t *testing.T) {
	o := Overrides{
		Enabled: false,
		Bounds:  map[string]Bound{"diamond": {Min: 2}},
	}
	assert.Equal(t, "novice", Resolve(5, o).Key)
}

func TestResolve_OverlappingBoundsFirstMatchWins(t *testing.T) {
	o := Overrides{
		Enabled: true,
		Bounds: map[string]Bound{
			"bronze": {Min: 5, Max: intPtr(30)},
			"gold":   {Min: 10, Max: intPtr(20)},
		},
	}
	// gold проверяется первым (больший Min)
	assert.Equal(t, "gold", Resolve(12, o).Key)
	assert.Equal(t, "bronze", Resolve(25, o).Key)
	assert.Equal(t, "bronze", Resolve(7, o).Key)
}

func TestResolve_GappedBoundsFallBackToLadder(t *testing.T) {
	o := Overrides{
		Enabled: true,
		Bounds: map[string]Bound{
			"bronze": {Min: 5, Max: intPtr(8)},
			"gold":   {Min: 30},
		},
	}
	// 20 не попадает ни в одну границу: стандартная лестница даёт silver
	assert.Equal(t, "silver", Resolve(20, o).Key)
}

func TestResolve_EqualMinUsesLadderOrder(t *testing.T) {
	o := Overrides{
		Enabled: true,
		Bounds: map[string]Bound{
			"bronze": {Min: 10},
			"gold":   {Min: 10},
		},
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "gold", Resolve(11, o).Key)
	}
}

func TestResolveDisplayIcon(t *testing.T) {
	silver, _ := Lookup("silver")
	star := silver.Icons[1].Emoji

	t.Run("below min streak ignores selection", func(t *testing.T) {
		info := ResolveDisplayIcon(9, star, Overrides{})
		assert.Equal(t, "novice", info.Key)
		assert.Equal(t, "🌱", info.Icon)
	})

	t.Run("no selection", func(t *testing.T) {
		info := ResolveDisplayIcon(25, "", Overrides{})
		assert.Equal(t, silver.Icon, info.Icon)
	})

	t.Run("selection of current rank", func(t *testing.T) {
		info := ResolveDisplayIcon(25, star, Overrides{})
		assert.Equal(t, star, info.Icon)
	})

	t.Run("stale selection falls back", func(t *testing.T) {
		bronze, _ := Lookup("bronze")
		info := ResolveDisplayIcon(25, bronze.Icons[2].Emoji, Overrides{})
		assert.Equal(t, silver.Icon, info.Icon)
	})

	t.Run("custom icon needs premium", func(t *testing.T) {
		custom := map[string][]Icon{"silver": {{Name: "custom_1", Emoji: "🦄"}}}

		info := ResolveDisplayIcon(25, "🦄", Overrides{Enabled: true, CustomIcons: custom})
		assert.Equal(t, "🦄", info.Icon)

		info = ResolveDisplayIcon(25, "🦄", Overrides{Enabled: false, CustomIcons: custom})
		assert.Equal(t, silver.Icon, info.Icon)
	})
}

func TestCandidates_BuiltInFirst(t *testing.T) {
	o := Overrides{
		Enabled:     true,
		CustomIcons: map[string][]Icon{"gold": {{Name: "a", Emoji: "🐉"}, {Name: "b", Emoji: "🦊"}}},
	}
	got := Candidates("gold", o)
	require.Len(t, got, 7)
	assert.Equal(t, "flame", got[0].Category)
	assert.Equal(t, "🐉", got[5].Emoji)
	assert.Equal(t, "🦊", got[6].Emoji)

	assert.Empty(t, Candidates("novice", Overrides{}))
	assert.Empty(t, Candidates(UnrankedKey, o))
}

func TestMigrateIcon(t *testing.T) {
	silver, _ := Lookup("silver")
	gold, _ := Lookup("gold")
	bronze, _ := Lookup("bronze")

	t.Run("flame silver to gold", func(t *testing.T) {
		got, ok := MigrateIcon(silver.Icons[0].Emoji, "gold")
		require.True(t, ok)
		assert.Equal(t, gold.Icons[0].Emoji, got)
		assert.Equal(t, "flame", gold.Icons[0].Category)
	})

	t.Run("every category keeps style on demotion", func(t *testing.T) {
		for i, icon := range gold.Icons {
			got, ok := MigrateIcon(icon.Emoji, "bronze")
			require.True(t, ok)
			assert.Equal(t, bronze.Icons[i].Emoji, got)
		}
	})

	t.Run("unknown icon", func(t *testing.T) {
		_, ok := MigrateIcon("🦄", "gold")
		assert.False(t, ok)
	})

	t.Run("rank without icons", func(t *testing.T) {
		_, ok := MigrateIcon(silver.Icons[0].Emoji, "novice")
		assert.False(t, ok)
		_, ok = MigrateIcon(silver.Icons[0].Emoji, UnrankedKey)
		assert.False(t, ok)
	})
}

func TestMigrateIcon_MissingCategoryUsesFirstIcon(t *testing.T) {
	saved := byKey["gold"]
	defer func() { byKey["gold"] = saved }()

	trimmed := saved
	trimmed.Icons = []Icon{saved.Icons[1], saved.Icons[2]}
	byKey["gold"] = trimmed

	silver, _ := Lookup("silver")
	got, ok := MigrateIcon(silver.Icons[0].Emoji, "gold")
	require.True(t, ok)
	assert.Equal(t, saved.Icons[1].Emoji, got)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := parseCatalog([]byte("ranks: []"))
	assert.Error(t, err)

	_, err = parseCatalog([]byte("ranks:\n  - {key: a, min: 1}\n  - {key: a, min: 2}\n"))
	assert.Error(t, err)

	_, err = parseCatalog([]byte("ranks:\n  - {key: a, min: 0}\n"))
	assert.Error(t, err)

	c, err := parseCatalog([]byte("ranks:\n  - {key: low, min: 1}\n  - {key: high, min: 5}\n"))
	require.NoError(t, err)
	assert.Equal(t, "high", c.Ranks[0].Key)
}

func TestCustomizableKeys(t *testing.T) {
	assert.Equal(t, []string{"diamond", "gold", "silver", "bronze"}, CustomizableKeys())
	assert.True(t, Customizable("bronze"))
	assert.False(t, Customizable("novice"))
	assert.False(t, Customizable("nope"))
}
