package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
)

func TestDefaultLayoutValidates(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())
}

func TestLayout_Slot(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, coords.Pt(80, 1200), l.Slot(0))
	assert.Equal(t, coords.Pt(540, 1170), l.Slot(1))
	assert.Equal(t, coords.Pt(540, 1170), l.Slot(149))
}

func TestLayout_DeleteTap(t *testing.T) {
	p, ok := DefaultLayout().DeleteTap()
	require.True(t, ok)
	assert.Equal(t, coords.Pt(834, 1251), p)

	_, ok = (&Layout{}).DeleteTap()
	assert.False(t, ok)
}

func TestLayout_SpecialCaseOrder(t *testing.T) {
	var names []string
	for _, sc := range DefaultLayout().SpecialCases {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"please-wait", "select-category", "continue-opening", "education", "first-offense"}, names)
}

func TestLoadLayout_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	data := `
preCycle: 250ms
destination:
  region: {x: 400, y: 100, width: 200, height: 80}
  expect: 云端办
switchSlots:
  0: {x: 90, y: 1210}
  1: {x: 90, y: 1400}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, l.PreCycle)
	assert.Equal(t, coords.Rect(400, 100, 200, 80), l.Destination.Region)
	assert.Equal(t, coords.Pt(90, 1400), l.Slot(1))
	// untouched fields keep their defaults
	assert.Equal(t, "未查询到数据", l.NoDataText)
	assert.Len(t, l.SpecialCases, 5)
}

func TestLoadLayout_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown verb", "cleanup:\n  - do: swipe\n"},
		{"long press without hold", "copyItem:\n  - do: longPress\n    at: {x: 1, y: 2}\n"},
		{"empty check", "confirmation:\n  expect: \"\"\n"},
		{"bad effect", "specialCases:\n  - name: x\n    when: [a]\n    effect: retry\n"},
		{"if without steps", "create:\n  - do: if\n    when: [a]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "layout.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := LoadLayout(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadLayout_EmptyPathIsDefault(t *testing.T) {
	l, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)
}

func TestScript_Validate(t *testing.T) {
	ok := Script{
		{Do: VerbTap, At: coords.Pt(1, 1)},
		{Do: VerbWhile, When: []string{"a"}, Steps: Script{{Do: VerbBack}}},
	}
	assert.NoError(t, ok.Validate())

	nested := Script{{Do: VerbIf, When: []string{"a"}, Steps: Script{{Do: VerbTapText}}}}
	assert.Error(t, nested.Validate())
}
