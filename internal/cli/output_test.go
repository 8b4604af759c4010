package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "invalid")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := &ExitError{Code: ExitCommandError, Message: "outer", Err: errors.New("inner")}
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "inner")
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("tok-1", "tok-2")
	assert.Equal(t, "tok-1", gen.Generate())
	assert.Equal(t, "tok-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestOutputFormatterSuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{
		Format: "json",
		Writer: &buf,
		Tokens: NewFixedGenerator("report-123"),
	}

	require.NoError(t, f.Success(ValidationReport{Valid: true, Object: "orders"}))
	assert.JSONEq(t, `{
		"status": "ok",
		"report_id": "report-123",
		"data": {"valid": true, "object": "orders"}
	}`, buf.String())
}

func TestOutputFormatterErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{
		Format: "json",
		Writer: &buf,
		Tokens: NewFixedGenerator("report-456"),
	}

	require.NoError(t, f.Error("UNKNOWN_OPERATOR", "where.operator", "unknown operator"))
	assert.JSONEq(t, `{
		"status": "error",
		"report_id": "report-456",
		"error": {"code": "UNKNOWN_OPERATOR", "path": "where.operator", "message": "unknown operator"}
	}`, buf.String())
}

func TestOutputFormatterErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error("E002", "", "file not found"))
	assert.Equal(t, "Error [E002]: file not found\n", buf.String())

	buf.Reset()
	require.NoError(t, f.Error("NEGATIVE_LIMIT", "limit", "limit must be non-negative"))
	assert.Equal(t, "Error [NEGATIVE_LIMIT] at limit: limit must be non-negative\n", buf.String())
}

func TestVerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("ignored %d", 1)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("loaded %s", "query.json")
	assert.Equal(t, "loaded query.json\n", errOut.String())
	assert.Empty(t, out.String(), "diagnostics must not corrupt stdout")
}
