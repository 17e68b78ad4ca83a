package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
	}{
		{"parse error is scan/warning", ErrCodeEntryParse, CategoryScan, SeverityWarning},
		{"unreadable dir is scan/warning", ErrCodeDirUnreadable, CategoryScan, SeverityWarning},
		{"cache version is index/warning", ErrCodeCacheVersion, CategoryIndex, SeverityWarning},
		{"launch failure is launch/error", ErrCodeLaunchFailed, CategoryLaunch, SeverityError},
		{"socket bind is daemon/fatal", ErrCodeSocketBind, CategoryDaemon, SeverityFatal},
		{"internal is internal/error", ErrCodeInternal, CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(ErrCodeEntryParse, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeEntryParse, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeCacheVersion, "stale schema", nil)
	b := New(ErrCodeCacheVersion, "different message", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, New(ErrCodeInternal, "stale schema", nil)))
}

func TestIsFatal_OnlyBindFailure(t *testing.T) {
	assert.True(t, IsFatal(BindError("socket unavailable", nil)))
	assert.False(t, IsFatal(ParseError("bad entry", nil)))
	assert.False(t, IsFatal(LaunchError("spawn failed", nil)))
	assert.False(t, IsFatal(nil))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ParseError("bad entry", nil)))
	assert.True(t, IsRecoverable(ScanError("permission denied", nil)))
	assert.True(t, IsRecoverable(New(ErrCodeCacheVersion, "schema mismatch", nil)))
	assert.False(t, IsRecoverable(BindError("taken", nil)))
	assert.False(t, IsRecoverable(stderrors.New("plain")))
}

func TestWithDetail_Chains(t *testing.T) {
	err := ParseError("bad entry", nil).
		WithDetail("path", "/usr/share/applications/foo.desktop").
		WithDetail("section", "Desktop Entry")

	assert.Equal(t, "/usr/share/applications/foo.desktop", err.Details["path"])
	assert.Equal(t, "Desktop Entry", err.Details["section"])
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	err := ScanError("unreadable", fmt.Errorf("EACCES")).WithDetail("dir", "/opt/apps")

	fields := FormatForLog(err)
	assert.Equal(t, ErrCodeDirUnreadable, fields["error_code"])
	assert.Equal(t, "EACCES", fields["cause"])
	assert.Equal(t, "/opt/apps", fields["detail_dir"])
}
