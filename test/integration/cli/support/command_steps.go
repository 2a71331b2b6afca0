package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/cucumber/godog"
)

// aBarcodeImage renders number into the temp directory.
func (testCtx *TestContext) aBarcodeImage(name, number string) error {
	return testCtx.aTurnedBarcodeImage(name, number, 0)
}

func (testCtx *TestContext) aTurnedBarcodeImage(name, number string, degrees float64) error {
	s := testutil.Scene{Number: number, Degrees: degrees}
	if degrees != 0 {
		// Wider modules survive the rotation; the digits are left off.
		s.Options = barcode.RenderOptions{ModuleWidth: 5}
	}
	img, err := s.Render()
	if err != nil {
		return err
	}
	return utils.SaveImage(img, testCtx.path(name))
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return utils.SaveImage(testutil.CreateTestImage(300, 120, color.White), testCtx.path(name))
}

func (testCtx *TestContext) aTextFile(name string) error {
	return os.WriteFile(testCtx.path(name), []byte("not an image"), 0o600)
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}

// iRunCommand runs the barscan binary. The first word must be "barscan".
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "barscan" {
		parts[0] = testCtx.BinPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substitute(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if !strings.Contains(testCtx.LastStderr, text) {
		return fmt.Errorf("stderr does not mention '%s'\nActual stderr: %s", text, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldBeAJSONListOfResults checks the JSON output and the number
// of results in it.
func (testCtx *TestContext) theOutputShouldBeAJSONListOfResults(n int) error {
	var results []map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &results); err != nil {
		return fmt.Errorf("output is not a JSON list: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(results) != n {
		return fmt.Errorf("expected %d results, got %d", n, len(results))
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeCSVWithRows(n int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not CSV: %w", err)
	}
	if len(records) == 0 || records[0][0] != "source" {
		return fmt.Errorf("missing CSV header in %q", testCtx.LastOutput)
	}
	if got := len(records) - 1; got != n {
		return fmt.Errorf("expected %d CSV rows, got %d", n, got)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.path(name)) {
		return fmt.Errorf("file %s does not exist", testCtx.path(name))
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain '%s'", name, text)
	}
	return nil
}

// RegisterCommandSteps registers the CLI steps.
func (testCtx *TestContext) RegisterCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a barcode image "([^"]*)" for "([^"]*)"$`, testCtx.aBarcodeImage)
	sc.Step(`^a barcode image "([^"]*)" for "([^"]*)" turned by (-?\d+(?:\.\d+)?) degrees$`, testCtx.aTurnedBarcodeImage)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be a JSON list of (\d+) results?$`, testCtx.theOutputShouldBeAJSONListOfResults)
	sc.Step(`^the output should be CSV with (\d+) rows?$`, testCtx.theOutputShouldBeCSVWithRows)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
