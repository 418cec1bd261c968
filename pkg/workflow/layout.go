package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
)

// Check is an OCR identity checkpoint: the trimmed text read from Region
// must equal Expect.
type Check struct {
	Region coords.Region `yaml:"region"`
	Expect string        `yaml:"expect"`
}

// DialogRule is a known transient error dialog and where to dismiss it.
type DialogRule struct {
	Name    string       `yaml:"name"`
	Text    string       `yaml:"text"`
	Dismiss coords.Point `yaml:"dismiss"`
}

// Effect is what a special case does to the rest of the cycle.
type Effect string

const (
	// EffectContinue resumes the cycle at the limit check.
	EffectContinue Effect = "continue"
	// EffectFinish cleans up and completes the cycle early.
	EffectFinish Effect = "finish"
)

// SpecialCase is one row of the special-case table. The first row whose
// condition holds is the only one applied in a pass.
type SpecialCase struct {
	Name string `yaml:"name"`
	// When holds if any of these texts is on screen.
	When []string `yaml:"when"`
	// Poll repeats the script while When still holds.
	Poll bool `yaml:"poll,omitempty"`
	// CheckLimit ends the run if the daily-limit text is present.
	CheckLimit bool   `yaml:"checkLimit,omitempty"`
	Script     Script `yaml:"script"`
	// Verify runs the confirmation checkpoint and the confirm script
	// after Script.
	Verify bool   `yaml:"verify,omitempty"`
	Effect Effect `yaml:"effect"`
	// Message is logged when the case fires.
	Message string `yaml:"message,omitempty"`
}

// Layout is the step table for one target app build. Every coordinate is
// in reference-resolution pixels.
type Layout struct {
	InitialSettle time.Duration `yaml:"initialSettle"`
	LaunchSettle  time.Duration `yaml:"launchSettle"`
	PreCycle      time.Duration `yaml:"preCycle"`

	// ItemRegion holds the next work item in the source app.
	ItemRegion coords.Region `yaml:"itemRegion"`
	// Sentinels end the loop when the item text contains any of them.
	Sentinels []string `yaml:"sentinels"`
	// CopyItem copies the item and opens the app switcher.
	CopyItem Script `yaml:"copyItem"`

	// SwitchSlots overrides the recents slot by cycle index.
	SwitchSlots map[int]coords.Point `yaml:"switchSlots"`
	DefaultSlot coords.Point         `yaml:"defaultSlot"`
	SlotSettle  time.Duration        `yaml:"slotSettle"`

	Destination Check  `yaml:"destination"`
	Search      Script `yaml:"search"`

	ErrorDialogs   []DialogRule  `yaml:"errorDialogs"`
	DismissSettle  time.Duration `yaml:"dismissSettle"`
	SearchButton   coords.Point  `yaml:"searchButton"`
	ResearchSettle time.Duration `yaml:"researchSettle"`

	NoDataText string `yaml:"noDataText"`
	NoDataAck  Script `yaml:"noDataAck"`

	// Create drives the ticket form up to the first special-case pass.
	Create       Script        `yaml:"create"`
	SpecialCases []SpecialCase `yaml:"specialCases"`
	LimitText    string        `yaml:"limitText"`

	FinalPrint   Script `yaml:"finalPrint"`
	Confirmation Check  `yaml:"confirmation"`
	Confirm      Script `yaml:"confirm"`

	Cleanup Script `yaml:"cleanup"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func tap(x, y, settle int) Action {
	return Action{Do: VerbTap, At: coords.Pt(x, y), Settle: ms(settle)}
}

func tapText(text string, settle int) Action {
	return Action{Do: VerbTapText, Text: text, Settle: ms(settle)}
}

// DefaultLayout returns the step table for the reference device.
func DefaultLayout() *Layout {
	return &Layout{
		InitialSettle: ms(1000),
		LaunchSettle:  ms(1000),
		PreCycle:      ms(150),

		ItemRegion: coords.Rect(150, 1888, 333, 116),
		Sentinels:  []string{"开始"},
		CopyItem: Script{
			{Do: VerbWait, Settle: ms(150)},
			{Do: VerbLongPress, At: coords.Pt(332, 1950), Hold: ms(700), Settle: ms(800)},
			tap(540, 800, 500),
			{Do: VerbRecents, Settle: ms(800)},
		},

		SwitchSlots: map[int]coords.Point{0: coords.Pt(80, 1200)},
		DefaultSlot: coords.Pt(540, 1170),
		SlotSettle:  ms(600),

		Destination: Check{Region: coords.Rect(450, 128, 165, 75), Expect: "云端办"},
		Search: Script{
			tap(740, 355, 200),
			tap(890, 348, 600),
			{Do: VerbLongPress, At: coords.Pt(740, 355), Hold: ms(800), Settle: ms(300)},
			tap(261, 238, 300),
			tap(995, 352, 3000),
		},

		ErrorDialogs: []DialogRule{
			{Name: "interrupted", Text: "interrupted", Dismiss: coords.Pt(540, 1298)},
			{Name: "please-wait", Text: "请稍后", Dismiss: coords.Pt(560, 1280)},
			{Name: "unexpected-end", Text: "unexpected end of", Dismiss: coords.Pt(530, 1360)},
		},
		DismissSettle:  ms(300),
		SearchButton:   coords.Pt(995, 352),
		ResearchSettle: ms(2500),

		NoDataText: "未查询到数据",
		NoDataAck:  Script{tap(540, 1298, 400)},

		Create: Script{
			{Do: VerbTapCreate, Settle: ms(300)},
			tapText("简易A版", 800),
			tap(520, 430, 800),
			tap(530, 1320, 300),
			{Do: VerbIf, When: []string{"请稍后", "未查询到当事人1年内的现场教育纠正记录！"}, Steps: Script{
				tap(530, 1320, 300),
			}},
			tap(810, 303, 500),
			tap(975, 1228, 300),
			{Do: VerbPasteOperator, Settle: ms(300)},
			tap(980, 336, 500),
			tap(540, 490, 500),
			tap(540, 2152, 500),
			tap(540, 1298, 500),
			tap(194, 1521, 300),
			tapText("相册", 1500),
			tap(260, 595, 300),
			tap(990, 165, 400),
			tap(540, 2152, 2000),
		},
		SpecialCases: []SpecialCase{
			{
				Name:    "please-wait",
				When:    []string{"请稍后", "已取消业务数据校验"},
				Poll:    true,
				Message: "等待系统响应...",
				Script: Script{
					{Do: VerbIf, When: []string{"请稍后"}, Steps: Script{tap(550, 1300, 300)}},
					{Do: VerbWhile, When: []string{"已取消业务数据校验"}, Steps: Script{
						tap(290, 1300, 800),
						tap(540, 2152, 2000),
					}},
				},
				Effect: EffectContinue,
			},
			{
				Name:    "select-category",
				When:    []string{"请选择骑手性质"},
				Message: "选择骑手性质：众包",
				Script: Script{
					tap(540, 1298, 600),
					tap(810, 1860, 600),
					tapText("众包", 800),
					tap(540, 2158, 600),
				},
				Effect: EffectContinue,
			},
			{
				Name:    "continue-opening",
				When:    []string{"继续开单"},
				Message: "检测到'继续开单'提示，按流程处理",
				Script: Script{
					tap(773, 1545, 800),
					tap(773, 1400, 600),
					{Do: VerbBack, Settle: ms(800)},
					tap(308, 1298, 800),
				},
				Effect: EffectFinish,
			},
			{
				Name:       "education",
				When:       []string{"该违法符合教育纠正条件"},
				CheckLimit: true,
				Message:    "检测到'教育纠正'条件",
				Script: Script{
					tap(773, 1478, 700),
					tap(540, 2158, 0),
				},
				Verify: true,
				Effect: EffectFinish,
			},
			{
				Name:    "first-offense",
				When:    []string{"违法符合首违警告情形"},
				Message: "检测到'首违警告'情形，选择警告处理",
				Script: Script{
					tap(773, 1370, 600),
					tapText("警告", 900),
					tap(540, 2152, 2000),
				},
				Effect: EffectContinue,
			},
		},
		LimitText: "民警当日开具的简易程序已达",

		FinalPrint:   Script{tap(540, 2158, 0)},
		Confirmation: Check{Region: coords.Rect(324, 128, 502, 73), Expect: "当场处罚打印预览"},
		Confirm: Script{
			{Do: VerbWait, Settle: ms(800)},
			tap(308, 1298, 1000),
			tapText("确定", 1000),
		},

		Cleanup: Script{
			{Do: VerbLaunchSource, Settle: ms(500)},
			{Do: VerbLongPress, At: coords.Pt(330, 1950), Hold: ms(800), Settle: ms(200)},
			tap(540, 1530, 800),
			tap(834, 1251, 300),
		},
	}
}

// Slot returns the recents slot to tap on cycle index.
func (l *Layout) Slot(index int) coords.Point {
	if p, ok := l.SwitchSlots[index]; ok {
		return p
	}
	return l.DefaultSlot
}

// DeleteTap returns the last tap of Cleanup, which confirms the delete.
func (l *Layout) DeleteTap() (coords.Point, bool) {
	for i := len(l.Cleanup) - 1; i >= 0; i-- {
		if l.Cleanup[i].Do == VerbTap {
			return l.Cleanup[i].At, true
		}
	}
	return coords.Point{}, false
}

// Validate reports the first problem with the table.
func (l *Layout) Validate() error {
	if l.ItemRegion.Width <= 0 || l.ItemRegion.Height <= 0 {
		return fmt.Errorf("itemRegion %v is empty", l.ItemRegion)
	}
	for name, c := range map[string]Check{"destination": l.Destination, "confirmation": l.Confirmation} {
		if c.Expect == "" {
			return fmt.Errorf("%s.expect is empty", name)
		}
		if c.Region.Width <= 0 || c.Region.Height <= 0 {
			return fmt.Errorf("%s.region %v is empty", name, c.Region)
		}
	}
	if l.NoDataText == "" {
		return fmt.Errorf("noDataText is empty")
	}
	for i, d := range l.ErrorDialogs {
		if d.Text == "" {
			return fmt.Errorf("errorDialogs[%d] has no text", i)
		}
	}
	for i, sc := range l.SpecialCases {
		if len(sc.When) == 0 {
			return fmt.Errorf("specialCases[%d] (%s) has no condition", i, sc.Name)
		}
		switch sc.Effect {
		case EffectContinue, EffectFinish:
		default:
			return fmt.Errorf("specialCases[%d] (%s): unknown effect %q", i, sc.Name, sc.Effect)
		}
	}
	scripts := map[string]Script{
		"copyItem": l.CopyItem, "search": l.Search, "noDataAck": l.NoDataAck, "create": l.Create,
		"finalPrint": l.FinalPrint, "confirm": l.Confirm, "cleanup": l.Cleanup,
	}
	for name, s := range scripts {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for _, sc := range l.SpecialCases {
		if err := sc.Script.Validate(); err != nil {
			return fmt.Errorf("specialCases %s: %w", sc.Name, err)
		}
	}
	return nil
}

// LoadLayout reads a YAML override on top of DefaultLayout. Fields absent
// from the file keep their defaults.
func LoadLayout(path string) (*Layout, error) {
	l := DefaultLayout()
	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout %s: %w", path, err)
	}
	return l, nil
}
