package wheel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout describes one wheel variant: how many pockets exist, which pockets
// are red, and the multiplier table. Pockets are numbered 0..Pockets-1;
// pocket 37 on the American layout represents the double-zero. Pockets
// outside 1..36 are edge pockets: they lose every bet except a single-pocket
// bet targeting them.
type Layout struct {
	Name        string      `yaml:"name"`
	Pockets     int         `yaml:"pockets"`
	RedPockets  []int       `yaml:"red_pockets"`
	Multipliers Multipliers `yaml:"multipliers"`

	red map[int]bool
}

// Multipliers is the per-category payout table, expressed as X in "X to 1".
// A winning bet returns stake * (multiplier + 1).
type Multipliers struct {
	Single    int64 `yaml:"single"`
	Dozen     int64 `yaml:"dozen"`
	Column    int64 `yaml:"column"`
	EvenMoney int64 `yaml:"even_money"`
}

// standardRed is the red partition shared by every standard layout.
var standardRed = []int{
	1, 3, 5, 7, 9, 12, 14, 16, 18,
	19, 21, 23, 25, 27, 30, 32, 34, 36,
}

func defaultMultipliers() Multipliers {
	return Multipliers{Single: 35, Dozen: 2, Column: 2, EvenMoney: 1}
}

// AmericanLayout returns the built-in 38-pocket layout (0, 00, 1..36).
func AmericanLayout() *Layout {
	l := &Layout{
		Name:        "american",
		Pockets:     38,
		RedPockets:  append([]int(nil), standardRed...),
		Multipliers: defaultMultipliers(),
	}
	l.init()
	return l
}

// EuropeanLayout returns the built-in 37-pocket layout (0, 1..36).
func EuropeanLayout() *Layout {
	l := &Layout{
		Name:        "european",
		Pockets:     37,
		RedPockets:  append([]int(nil), standardRed...),
		Multipliers: defaultMultipliers(),
	}
	l.init()
	return l
}

// LoadLayout reads a layout definition from a YAML file. Omitted multipliers
// and red pockets fall back to the standard table.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout file %s: %w", path, err)
	}

	if len(l.RedPockets) == 0 {
		l.RedPockets = append([]int(nil), standardRed...)
	}
	zero := Multipliers{}
	if l.Multipliers == zero {
		l.Multipliers = defaultMultipliers()
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout file %s: %w", path, err)
	}
	l.init()
	return &l, nil
}

func (l *Layout) init() {
	l.red = make(map[int]bool, len(l.RedPockets))
	for _, p := range l.RedPockets {
		l.red[p] = true
	}
}

// Validate checks structural constraints before the layout is used.
func (l *Layout) Validate() error {
	if l.Pockets != 37 && l.Pockets != 38 {
		return fmt.Errorf("pockets must be 37 or 38, got %d", l.Pockets)
	}
	if len(l.RedPockets) != 18 {
		return fmt.Errorf("red partition must hold 18 pockets, got %d", len(l.RedPockets))
	}
	seen := make(map[int]bool, len(l.RedPockets))
	for _, p := range l.RedPockets {
		if p < 1 || p > 36 {
			return fmt.Errorf("red pocket %d outside 1..36", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate red pocket %d", p)
		}
		seen[p] = true
	}
	if l.Multipliers.Single <= 0 || l.Multipliers.Dozen <= 0 ||
		l.Multipliers.Column <= 0 || l.Multipliers.EvenMoney <= 0 {
		return fmt.Errorf("multipliers must be positive, got %+v", l.Multipliers)
	}
	return nil
}

// Contains reports whether p is a valid pocket on this wheel.
func (l *Layout) Contains(p int) bool {
	return p >= 0 && p < l.Pockets
}

// IsEdge reports whether p is an edge pocket (0, and 37 on American wheels).
func (l *Layout) IsEdge(p int) bool {
	return p == 0 || p > 36
}

// IsRed reports whether p belongs to the red partition.
func (l *Layout) IsRed(p int) bool {
	return l.red[p]
}

// EdgePockets lists the edge pockets of this layout in ascending order.
func (l *Layout) EdgePockets() []int {
	edges := []int{0}
	for p := 37; p < l.Pockets; p++ {
		edges = append(edges, p)
	}
	return edges
}
