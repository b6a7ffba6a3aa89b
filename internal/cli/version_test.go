package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		versionShort = false
	})

	versionCmd.Run(versionCmd, nil)
	if out := buf.String(); !strings.HasPrefix(out, "memorylayer dev\n") || !strings.Contains(out, "commit: unknown") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	versionShort = true
	versionCmd.Run(versionCmd, nil)
	if buf.String() != "dev\n" {
		t.Errorf("short output = %q", buf.String())
	}
	if VersionString() != "dev+unknown" {
		t.Errorf("VersionString = %q", VersionString())
	}
}
