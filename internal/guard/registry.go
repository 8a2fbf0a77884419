package guard

import (
	"fmt"

	"github.com/meridian-works/meridian/internal/scope"
)

// Kind names a guarded entity type.
type Kind string

const (
	KindRequirement Kind = "requirement"
	KindWorkshop    Kind = "workshop"
	KindTestCase    Kind = "test_case"
	KindDefect      Kind = "defect"
	KindRaidItem    Kind = "raid_item"
)

// kindSpec describes how a kind's table anchors into the ownership hierarchy.
// Every guarded table carries denormalized tenant_id and program_id columns;
// project-scoped kinds carry project_id as well. listLevel is the narrowest
// scope component a list call must supply — never optional.
type kindSpec struct {
	table     string
	ownLevel  scope.Level
	listLevel scope.Level
}

// kindRegistry is the closed set of entity kinds the guard will touch. A
// table not listed here has no sanctioned by-ID lookup path at all.
var kindRegistry = map[Kind]kindSpec{
	KindRequirement: {table: "backlog_items", ownLevel: scope.LevelProject, listLevel: scope.LevelProject},
	KindWorkshop:    {table: "workshops", ownLevel: scope.LevelProgram, listLevel: scope.LevelProgram},
	KindTestCase:    {table: "test_cases", ownLevel: scope.LevelProject, listLevel: scope.LevelProject},
	KindDefect:      {table: "defects", ownLevel: scope.LevelProject, listLevel: scope.LevelProject},
	KindRaidItem:    {table: "raid_items", ownLevel: scope.LevelProgram, listLevel: scope.LevelProgram},
}

func specFor(kind Kind) (kindSpec, error) {
	spec, ok := kindRegistry[kind]
	if !ok {
		return kindSpec{}, fmt.Errorf("guard: unknown entity kind %q", kind)
	}
	return spec, nil
}

// Kinds returns every registered kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindRegistry))
	for k := range kindRegistry {
		kinds = append(kinds, k)
	}
	return kinds
}
