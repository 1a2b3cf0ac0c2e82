package main

import "testing"

func TestRunWithNoArgsReturnsArgError(t *testing.T) {
	if code := run(nil); code != exitArgError {
		t.Errorf("expected exitArgError, got %d", code)
	}
}

func TestRunWithUnknownSubcommandReturnsArgError(t *testing.T) {
	if code := run([]string{"bogus"}); code != exitArgError {
		t.Errorf("expected exitArgError, got %d", code)
	}
}

func TestRunUpdateReportsReturnsOK(t *testing.T) {
	if code := run([]string{"update-reports", "confdir", "stable"}); code != exitOK {
		t.Errorf("expected exitOK stub, got %d", code)
	}
}

func TestCmdProcessRequiresConfdirAndSuite(t *testing.T) {
	if code := cmdProcess(nil); code != exitArgError {
		t.Errorf("expected exitArgError, got %d", code)
	}
}

func TestCmdForgetRequiresConfdirAndPkid(t *testing.T) {
	if code := cmdForget([]string{"onlyone"}); code != exitArgError {
		t.Errorf("expected exitArgError, got %d", code)
	}
}

func TestLoadConfigFailsOnMissingFile(t *testing.T) {
	if _, code := loadConfig(t.TempDir()); code != exitInitFailed {
		t.Errorf("expected exitInitFailed, got %d", code)
	}
}
