package parse

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dida/internal/task"
)

// Wednesday afternoon
var now = time.Date(2026, 10, 14, 16, 45, 0, 0, time.UTC)

func day(offset int) time.Time {
	return task.AddDays(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), offset)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Result
	}{
		{"买牛奶 !p1 明天", Result{Title: "买牛奶", Priority: task.PriorityP1, DueDate: day(1)}},
		{"  plain title  ", Result{Title: "plain title"}},
		{"", Result{}},
		{"ship it !P0", Result{Title: "ship it", Priority: task.PriorityP0}},
		{"!p3 is not a priority", Result{Title: "!p3 is not a priority"}},
		{"a !p2 b !p0", Result{Title: "a  b !p0", Priority: task.PriorityP2}},
		{"后天交报告", Result{Title: "交报告", DueDate: day(2)}},
		{"今天 明天 开会", Result{Title: "今天  开会", DueDate: day(1)}},
		{"今天开会", Result{Title: "开会", DueDate: day(0)}},
		{"周五聚餐", Result{Title: "聚餐", DueDate: day(2)}},
		{"星期一 跑步", Result{Title: "跑步", DueDate: day(5)}},
		{"周三复盘", Result{Title: "复盘", DueDate: day(7)}},
		{"周日 周一", Result{Title: "周一", DueDate: day(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in, now)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestResult_Patch(t *testing.T) {
	p := Parse("买牛奶 !p1 明天", now).Patch()
	if p.Title == nil || *p.Title != "买牛奶" {
		t.Errorf("title = %v", p.Title)
	}
	if p.Priority == nil || *p.Priority != task.PriorityP1 {
		t.Errorf("priority = %v", p.Priority)
	}
	if p.DueDate == nil || !p.DueDate.Equal(day(1)) {
		t.Errorf("due = %v", p.DueDate)
	}

	p = Parse("nothing", now).Patch()
	if p.Priority != nil || p.DueDate != nil {
		t.Errorf("patch = %+v, want title only", p)
	}
}
