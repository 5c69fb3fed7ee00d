package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v1.2.3"

	info := Get()
	if info.Version != "v1.2.3" || info.Commit != Commit || info.Date != Date {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.Contains(info.String(), "version: v1.2.3") {
		t.Errorf("String() = %q", info.String())
	}
}

func TestTemplate(t *testing.T) {
	tmpl := Template()
	if !strings.HasPrefix(tmpl, "{{.Name}} version: ") {
		t.Errorf("Template() = %q", tmpl)
	}
	if !strings.HasSuffix(tmpl, "\n") {
		t.Error("template should end with a newline")
	}
}
