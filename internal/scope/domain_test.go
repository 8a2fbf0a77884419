package scope

import "testing"

func TestLevelCovers(t *testing.T) {
	cases := []struct {
		name  string
		level Level
		other Level
		want  bool
	}{
		{"global covers project", LevelGlobal, LevelProject, true},
		{"global covers itself", LevelGlobal, LevelGlobal, true},
		{"tenant covers program", LevelTenant, LevelProgram, true},
		{"tenant covers project", LevelTenant, LevelProject, true},
		{"program covers project", LevelProgram, LevelProject, true},
		{"project covers itself", LevelProject, LevelProject, true},
		{"project does not cover program", LevelProject, LevelProgram, false},
		{"program does not cover tenant", LevelProgram, LevelTenant, false},
		{"unknown level covers nothing", Level("team"), LevelProject, false},
		{"nothing covers unknown level", LevelGlobal, Level("team"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.level.Covers(tc.other); got != tc.want {
				t.Fatalf("Covers(%s, %s) = %v, want %v", tc.level, tc.other, got, tc.want)
			}
		})
	}
}

func TestLevelValid(t *testing.T) {
	for _, l := range []Level{LevelGlobal, LevelTenant, LevelProgram, LevelProject} {
		if !l.Valid() {
			t.Fatalf("level %s should be valid", l)
		}
	}
	if Level("workspace").Valid() {
		t.Fatal("unknown level should be invalid")
	}
}

func TestScopeLevel(t *testing.T) {
	cases := []struct {
		name string
		s    Scope
		want Level
	}{
		{"empty is global", Scope{}, LevelGlobal},
		{"tenant only", Scope{TenantID: 7}, LevelTenant},
		{"tenant and program", Scope{TenantID: 7, ProgramID: 11}, LevelProgram},
		{"full chain", Scope{TenantID: 7, ProgramID: 11, ProjectID: 22}, LevelProject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Level(); got != tc.want {
				t.Fatalf("Level() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestChainCoveredBy(t *testing.T) {
	chain := Chain{TenantID: 7, ProgramID: 11, ProjectID: 22}

	cases := []struct {
		name    string
		level   Level
		scopeID int64
		want    bool
	}{
		{"global anchor covers everything", LevelGlobal, 0, true},
		{"matching tenant anchor", LevelTenant, 7, true},
		{"foreign tenant anchor", LevelTenant, 8, false},
		{"matching program anchor", LevelProgram, 11, true},
		{"sibling program anchor", LevelProgram, 12, false},
		{"matching project anchor", LevelProject, 22, true},
		{"sibling project anchor", LevelProject, 23, false},
		{"unknown anchor level", Level("team"), 22, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := chain.CoveredBy(tc.level, tc.scopeID); got != tc.want {
				t.Fatalf("CoveredBy(%s, %d) = %v, want %v", tc.level, tc.scopeID, got, tc.want)
			}
		})
	}
}

func TestChainCoveredByShallowChain(t *testing.T) {
	// A chain resolved only to program depth has no project component, so a
	// project-anchored assignment can never cover it.
	chain := Chain{TenantID: 7, ProgramID: 11}
	if chain.CoveredBy(LevelProject, 22) {
		t.Fatal("project anchor must not cover a program-depth chain")
	}
	if !chain.CoveredBy(LevelProgram, 11) {
		t.Fatal("program anchor should cover its own program-depth chain")
	}
	if !chain.CoveredBy(LevelTenant, 7) {
		t.Fatal("tenant anchor should cover a program-depth chain under it")
	}
}
