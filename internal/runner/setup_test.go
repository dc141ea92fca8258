package runner

import (
	"strings"
	"testing"

	"github.com/hochfrequenz/swebatch/internal/domain"
)

const goldPatch = `diff --git a/pkg/core.py b/pkg/core.py
index 1111111..2222222 100644
--- a/pkg/core.py
+++ b/pkg/core.py
@@ -1 +1 @@
-x = 1
+x = 2
`

func TestBuildSetupArgs(t *testing.T) {
	rec := &domain.InstanceRecord{
		InstanceID:       "i1",
		ProblemStatement: "the bug",
		Patch:            goldPatch,
		FailToPass:       []string{"test_a", "test_b"},
	}

	setup, err := buildSetupArgs(rec)
	if err != nil {
		t.Fatal(err)
	}
	if setup.Issue != "the bug" {
		t.Errorf("Issue = %q", setup.Issue)
	}
	if setup.Files != "- pkg/core.py" {
		t.Errorf("Files = %q", setup.Files)
	}
	if setup.TestFiles != "" {
		t.Errorf("TestFiles = %q, want empty without test patch", setup.TestFiles)
	}
	if !strings.Contains(setup.Tests, "- test_a") || !strings.Contains(setup.Tests, "- test_b") {
		t.Errorf("Tests = %q", setup.Tests)
	}
}

func TestBuildSetupArgs_BadPatch(t *testing.T) {
	rec := &domain.InstanceRecord{
		InstanceID: "i1",
		Patch:      "--- a/f.py\n+++ b/f.py\n@@ invalid @@\n",
	}
	if _, err := buildSetupArgs(rec); err == nil {
		t.Error("buildSetupArgs accepted malformed patch")
	}
}
