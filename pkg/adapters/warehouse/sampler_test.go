package warehouse_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-introspect/pkg/testhelpers"
)

func TestSampleColumn_NonPositiveSizeIssuesNoQuery(t *testing.T) {
	fw := testhelpers.NewFakeWarehouse().
		OnQuery("SELECT DISTINCT", []string{"V"}, []any{"a"})
	session := openTestSession(t, newTestManager(t, fw, defaultSettings))

	for _, size := range []int{0, -1, -3, -100, math.MinInt32, math.MinInt} {
		values := session.SampleColumn(context.Background(), "RAW", "ORDERS", "STATUS", "VARCHAR", size)
		assert.Nil(t, values, "size %d", size)
	}
	assert.Empty(t, fw.Statements("SELECT DISTINCT"))
}

func TestSampleColumn_QueryShape(t *testing.T) {
	fw := testhelpers.NewFakeWarehouse().
		OnQuery("SELECT DISTINCT", []string{"status"}, []any{"open"}, []any{"closed"})
	session := openTestSession(t, newTestManager(t, fw, defaultSettings))

	values := session.SampleColumn(context.Background(), "Raw", "Orders", "status", "VARCHAR(16)", 2)
	assert.Equal(t, []string{"open", "closed"}, values)
	assert.Equal(t, []string{`SELECT DISTINCT "status" FROM "Raw"."Orders" LIMIT 2`}, fw.Statements("SELECT DISTINCT"))
}

func TestSampleColumn_RendersValuesAsStrings(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		datatype string
		raw      any
		want     string
	}{
		{"string", "VARCHAR", "open", "open"},
		{"bytes", "BINARY", []byte("raw"), "raw"},
		{"integer", "NUMBER(38,0)", int64(42), "42"},
		{"float", "FLOAT", 1.5, "1.5"},
		{"bool", "BOOLEAN", true, "true"},
		{"null", "VARCHAR", nil, "NULL"},
		{"date", "DATE", ts, "2024-03-01"},
		{"time", "TIME", time.Date(0, 1, 1, 10, 30, 5, 0, time.UTC), "10:30:05"},
		{"timestamp", "TIMESTAMP_NTZ", ts, "2024-03-01 10:30:00 +0000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := testhelpers.NewFakeWarehouse().
				OnQuery("SELECT DISTINCT", []string{"V"}, []any{tt.raw})
			session := openTestSession(t, newTestManager(t, fw, defaultSettings))

			values := session.SampleColumn(context.Background(), "RAW", "T", "V", tt.datatype, 3)
			assert.Equal(t, []string{tt.want}, values)
		})
	}
}

func TestSampleColumn_ReadsAtMostSampleSize(t *testing.T) {
	fw := testhelpers.NewFakeWarehouse().
		OnQuery("SELECT DISTINCT", []string{"V"}, []any{"a"}, []any{"b"}, []any{"c"}, []any{"d"})
	session := openTestSession(t, newTestManager(t, fw, defaultSettings))

	values := session.SampleColumn(context.Background(), "RAW", "T", "V", "VARCHAR", 2)
	assert.Equal(t, []string{"a", "b"}, values)
}

func TestSampleColumn_EmptyResult(t *testing.T) {
	fw := testhelpers.NewFakeWarehouse().
		OnQuery("SELECT DISTINCT", []string{"V"})
	session := openTestSession(t, newTestManager(t, fw, defaultSettings))

	assert.Empty(t, session.SampleColumn(context.Background(), "RAW", "T", "V", "VARCHAR", 3))
}

func TestSampleColumn_FailureIsLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fw := testhelpers.NewFakeWarehouse().
		OnError("SELECT DISTINCT", errors.New("Insufficient privileges to operate on table 'SECRET'"))
	session := openTestSession(t, newTestManagerWithLogger(t, fw, defaultSettings, zap.New(core)))

	values := session.SampleColumn(context.Background(), "RAW", "SECRET", "SSN", "VARCHAR", 3)
	assert.Nil(t, values)

	entries := logs.FilterMessageSnippet("sampling failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "RAW.SECRET.SSN")
	assert.Contains(t, entries[0].ContextMap()["error"], "Insufficient privileges")
}

func TestSampleColumn_UnexpectedShapeIsSwallowed(t *testing.T) {
	fw := testhelpers.NewFakeWarehouse().
		OnQuery("SELECT DISTINCT", []string{"A", "B"}, []any{"a", "b"})
	session := openTestSession(t, newTestManager(t, fw, defaultSettings))

	assert.Nil(t, session.SampleColumn(context.Background(), "RAW", "T", "A", "VARCHAR", 3))
}
