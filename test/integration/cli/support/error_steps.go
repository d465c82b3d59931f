package support

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMentionUnknownFlag verifies cobra rejected a flag.
func (testCtx *TestContext) theErrorShouldMentionUnknownFlag() error {
	return testCtx.theErrorShouldMention("unknown flag")
}

// theErrorShouldMentionFileNotFound accepts the wordings of open failures.
func (testCtx *TestContext) theErrorShouldMentionFileNotFound() error {
	for _, s := range []string{"no such file", "cannot access", "does not exist"} {
		if testCtx.theErrorShouldMention(s) == nil {
			return nil
		}
	}
	return fmt.Errorf("error does not mention a missing file\nOutput: %s", testCtx.LastOutput)
}

// theErrorShouldMentionInvalidOptions verifies the configuration was rejected.
func (testCtx *TestContext) theErrorShouldMentionInvalidOptions(field string) error {
	if err := testCtx.theErrorShouldMention("invalid"); err != nil {
		return err
	}
	return testCtx.theErrorShouldMention(field)
}

var failedSummary = regexp.MustCompile(`(\d+) of (\d+) (records|label files) failed`)

// itemsShouldHaveFailed checks the failure summary of a batch run.
func (testCtx *TestContext) itemsShouldHaveFailed(failed, total int, unit string) error {
	if err := testCtx.theCommandShouldFail(); err != nil {
		return err
	}
	m := failedSummary.FindStringSubmatch(testCtx.LastOutput)
	if m == nil {
		return fmt.Errorf("no failure summary in output\nOutput: %s", testCtx.LastOutput)
	}
	want := fmt.Sprintf("%d of %d %s failed", failed, total, unit)
	if m[0] != want {
		return fmt.Errorf("failure summary is %q, expected %q", m[0], want)
	}
	return nil
}

// theLogsShouldBeJSON checks that stderr only carries JSON log records
// besides cobra's error line.
func (testCtx *TestContext) theLogsShouldBeJSON() error {
	stderr := strings.TrimPrefix(testCtx.LastOutput, testCtx.LastStdout)
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		if line == "" || strings.HasPrefix(line, "Error: ") {
			continue
		}
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"level"`) {
			return fmt.Errorf("log line is not a JSON record: %q", line)
		}
	}
	return nil
}

// RegisterErrorSteps registers error handling step definitions.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention an unknown flag$`, testCtx.theErrorShouldMentionUnknownFlag)
	sc.Step(`^the error should mention a missing file$`, testCtx.theErrorShouldMentionFileNotFound)
	sc.Step(`^the error should mention an invalid "([^"]*)"$`, testCtx.theErrorShouldMentionInvalidOptions)
	sc.Step(`^(\d+) of (\d+) (records|label files) should have failed$`, testCtx.itemsShouldHaveFailed)
	sc.Step(`^the logs should be JSON$`, testCtx.theLogsShouldBeJSON)
}
