package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
	z string
}

type User struct {
	Name string
}

type StructWithStruct struct {
	x int
	Y User
	z string
}

type StructWithAnonymousStruct struct {
	x int
	Y struct {
		Y1 string
	}
	Z string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	// `Helper` will result in test failures being associated with the callers line number. It's
	// more useful to report which `assertLogMatches` call failed rather than which assertion
	// inside this function. Maybe.
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// The exact time is irrelevant but it must be in the expected format.
	_, err = time.Parse(DefaultTimeFormatStr, actualParts[0])
	test.That(t, err, test.ShouldBeNil)
	// Log level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	// Verify the filename matches exactly.
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	// Verify the line number is in fact a number, but no more.
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])

	// Structured logging with the "w" API. E.g: `Debugw` has an extra tab delimited output.
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 5 {
		return
	}

	// JSON encoding of maps can be unpredictable because map iteration order can change between
	// runs. Parse the output into maps and assert on map equality.
	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[5]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[5]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func newBufferLogger(name string, level Level) (*impl, *bytes.Buffer) {
	notStdout := &bytes.Buffer{}
	return newImpl(name, level, false, NewWriterAppender(notStdout)), notStdout
}

func TestConsoleOutputFormat(t *testing.T) {
	// A logger object that will write to the `notStdout` buffer.
	impl, notStdout := newBufferLogger("impl", DEBUG)

	impl.Info("impl Info log")
	// Note the use of tabs between the date, level, name, file location and log line. The
	// `assertLogMatches` helper will also deal with the changes to the time/line number.
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459-0400	INFO	impl	logging/impl_test.go:67	impl Info log`)

	// Using `Infof` substitutes the tail arguments into the leading template string input.
	impl.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764-0400	INFO	impl	logging/impl_test.go:131	impl infof log`)

	// Using `Infow` turns the tail arguments into a map for structured logging.
	impl.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	INFO	impl	logging/impl_test.go:132	impl logw	{"key":"value"}`)

	impl.Infow("StructWithStruct", "key", "val", "StructWithStruct", StructWithStruct{1, User{"alice"}, "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	impl	logging/impl_test.go:123	StructWithStruct	{"StructWithStruct":{"Y":{"Name":"alice"}},"key":"val"}`)

	impl.Infow("BasicStruct", "implOneKey", "1val", "BasicStruct", BasicStruct{1, "alice", "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	impl	logging/impl_test.go:125	BasicStruct	{"BasicStruct":{"X":1},"implOneKey":"1val"}`)

	impl.Infow("anonymous", "StructWithAnonymousStruct", StructWithAnonymousStruct{1, struct{ Y1 string }{"y1"}, "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	impl	logging/impl_test.go:121	anonymous	{"StructWithAnonymousStruct":{"Y":{"Y1":"y1"},"Z":"foo"}}`)

	// Represent a struct as a string using `fmt.Sprintf`.
	impl.Infow("impl logw", "key", "val", "fmt.Sprintf", fmt.Sprintf("%+v", BasicStruct{1, "alice", "foo"}))
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	impl	logging/impl_test.go:127	impl logw	{"fmt.Sprintf":"{X:1 y:alice z:foo}","key":"val"}`)

	// A key without a value is not dropped.
	impl.Warnw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	WARN	impl	logging/impl_test.go:127	unpaired	{"lonely":"unpaired log key"}`)
}

func TestLevelFiltering(t *testing.T) {
	logger, notStdout := newBufferLogger("filter", WARN)
	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Error("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	ERROR	filter	logging/impl_test.go:127	kept`)

	// A context in debug mode lets CDebug statements through.
	logger.CDebugf(context.Background(), "dropped %d", 1)
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, len(GetName(ctx)), test.ShouldEqual, 6)
	logger.CDebugw(ctx, "debug mode", "trial", 3)
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	DEBUG	filter	logging/impl_test.go:127	debug mode	{"trial":3}`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debug("now kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	DEBUG	filter	logging/impl_test.go:127	now kept`)
}

func TestSubloggerAndObserver(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("ransac").Sublogger("worker")
	sub.Infow("done", "inliers", 12)

	entries := observed.FilterMessage("done").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "ransac.worker")
	test.That(t, entries[0].ContextMap()["inliers"], test.ShouldEqual, int64(12))
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]Level{"DEBUG": DEBUG, "info": INFO, "Warning": WARN, "error": ERROR} {
		level, err := LevelFromString(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, want)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}
