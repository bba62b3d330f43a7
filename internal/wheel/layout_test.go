package wheel_test

import (
	"os"
	"path/filepath"
	"testing"

	"WagerHouse/internal/wheel"
)

func TestBuiltinLayouts(t *testing.T) {
	am := wheel.AmericanLayout()
	if err := am.Validate(); err != nil {
		t.Fatalf("american layout invalid: %v", err)
	}
	if am.Pockets != 38 {
		t.Errorf("american pockets = %d, want 38", am.Pockets)
	}
	if got := am.EdgePockets(); len(got) != 2 || got[0] != 0 || got[1] != 37 {
		t.Errorf("american edge pockets = %v, want [0 37]", got)
	}

	eu := wheel.EuropeanLayout()
	if err := eu.Validate(); err != nil {
		t.Fatalf("european layout invalid: %v", err)
	}
	if got := eu.EdgePockets(); len(got) != 1 || got[0] != 0 {
		t.Errorf("european edge pockets = %v, want [0]", got)
	}
	if eu.Contains(37) {
		t.Error("european layout should not contain pocket 37")
	}
}

func TestLayoutValidateRejectsBadConfigs(t *testing.T) {
	bad := []wheel.Layout{
		{Name: "tiny", Pockets: 10, RedPockets: []int{1}, Multipliers: wheel.Multipliers{Single: 35, Dozen: 2, Column: 2, EvenMoney: 1}},
		{Name: "short_red", Pockets: 38, RedPockets: []int{1, 2, 3}, Multipliers: wheel.Multipliers{Single: 35, Dozen: 2, Column: 2, EvenMoney: 1}},
		{Name: "zero_mult", Pockets: 38, RedPockets: wheel.AmericanLayout().RedPockets, Multipliers: wheel.Multipliers{}},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Errorf("layout %q should fail validation", l.Name)
		}
	}

	dup := wheel.Layout{
		Name:        "dup_red",
		Pockets:     38,
		RedPockets:  []int{1, 1, 3, 5, 7, 9, 12, 14, 16, 18, 19, 21, 23, 25, 27, 30, 32, 34},
		Multipliers: wheel.Multipliers{Single: 35, Dozen: 2, Column: 2, EvenMoney: 1},
	}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate red pocket should fail validation")
	}
}

func TestLoadLayoutFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wheel.yaml")

	content := []byte("name: european\npockets: 37\nmultipliers:\n  single: 35\n  dozen: 2\n  column: 2\n  even_money: 1\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write layout file: %v", err)
	}

	l, err := wheel.LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if l.Name != "european" || l.Pockets != 37 {
		t.Errorf("loaded layout = %s/%d, want european/37", l.Name, l.Pockets)
	}
	// Red partition defaults to the standard set when omitted.
	if !l.IsRed(19) || l.IsRed(20) {
		t.Error("default red partition not applied")
	}
}

func TestLoadLayoutRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wheel.yaml")

	if err := os.WriteFile(path, []byte("pockets: 5\nname: broken\n"), 0o644); err != nil {
		t.Fatalf("write layout file: %v", err)
	}
	if _, err := wheel.LoadLayout(path); err == nil {
		t.Error("LoadLayout should reject a 5-pocket wheel")
	}
	if _, err := wheel.LoadLayout(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadLayout should fail on a missing file")
	}
}
