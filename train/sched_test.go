package train

import (
	"errors"
	"testing"

	"github.com/MingSun-Tse/smilepruning/smile"
)

func TestParseLRScheduleColonForm(t *testing.T) {
	sched, err := ParseLRSchedule("0:0.01, 30:0.001,60:0.0001")
	if err != nil {
		t.Fatalf("ParseLRSchedule: %v", err)
	}
	want := map[int]float64{0: 0.01, 30: 0.001, 60: 0.0001}
	if len(sched) != len(want) {
		t.Fatalf("got %d milestones; want %d", len(sched), len(want))
	}
	for e, lr := range want {
		if sched[e] != lr {
			t.Errorf("sched[%d] = %v; want %v", e, sched[e], lr)
		}
	}
}

func TestParseLRScheduleJSONForm(t *testing.T) {
	sched, err := ParseLRSchedule(`{"0":0.1,"45":0.01}`)
	if err != nil {
		t.Fatalf("ParseLRSchedule: %v", err)
	}
	if sched[0] != 0.1 || sched[45] != 0.01 {
		t.Errorf("got %v; want {0:0.1, 45:0.01}", sched)
	}
}

func TestParseLRScheduleEmpty(t *testing.T) {
	sched, err := ParseLRSchedule("")
	if err != nil {
		t.Fatalf("ParseLRSchedule: %v", err)
	}
	if sched != nil {
		t.Errorf("got %v; want nil", sched)
	}
}

func TestParseLRScheduleBad(t *testing.T) {
	for _, spec := range []string{"abc", "0:0.1:5", "x:0.1", "0:y", `{"a":0.1}`} {
		if _, err := ParseLRSchedule(spec); !errors.Is(err, smile.ErrConfig) {
			t.Errorf("ParseLRSchedule(%q) err = %v; want ErrConfig", spec, err)
		}
	}
}

func TestLRForEpoch(t *testing.T) {
	sched := map[int]float64{10: 0.01, 30: 0.001}
	check := func(epoch int, want float64) {
		if got := LRForEpoch(sched, epoch, 0.1); got != want {
			t.Errorf("LRForEpoch(%d) = %v; want %v", epoch, got, want)
		}
	}
	check(0, 0.1)
	check(9, 0.1)
	check(10, 0.01)
	check(29, 0.01)
	check(30, 0.001)
	check(100, 0.001)
	if got := LRForEpoch(nil, 5, 0.1); got != 0.1 {
		t.Errorf("LRForEpoch with nil schedule = %v; want 0.1", got)
	}
}
