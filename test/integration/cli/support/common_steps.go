package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/kvmap/cmd/kvmap/cmd"
)

// iRunCommand executes a kvmap command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "kvmap" {
		return fmt.Errorf("unsupported command %q", parts[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := cmd.GetRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])

	start := time.Now()
	err := root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed: %w\nstdout: %s\nstderr: %s",
			testCtx.LastError, testCtx.LastStdout, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nstdout: %s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStdout, expected) {
		return fmt.Errorf("output does not contain %q\nactual output: %s", expected, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastStdout, unexpected) {
		return fmt.Errorf("output unexpectedly contains %q", unexpected)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\noutput: %s", err, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeASingleLine() error {
	if n := strings.Count(strings.TrimSpace(testCtx.LastStdout), "\n"); n > 0 {
		return fmt.Errorf("expected one line of output, got %d", n+1)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, but expected error containing %q", text)
	}
	full := testCtx.LastError.Error() + " " + testCtx.LastStderr
	if !strings.Contains(strings.ToLower(full), strings.ToLower(text)) {
		return fmt.Errorf("error does not contain %q\nactual error: %s", text, full)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.substitute(name)
	if _, err := os.Stat(testCtx.Path(path)); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.substitute(name)
	if _, err := os.Stat(testCtx.Path(path)); err == nil {
		return fmt.Errorf("file %s should not exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	path := testCtx.Path(testCtx.substitute(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q", path, expected)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, value)
}

func (testCtx *TestContext) aConfigFileWith(name string, body *godog.DocString) error {
	return os.WriteFile(testCtx.Path(name), []byte(body.Content), 0o600)
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be a single line$`, testCtx.theOutputShouldBeASingleLine)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
}
