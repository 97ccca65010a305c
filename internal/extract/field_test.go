package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldVariants(t *testing.T) {
	t.Parallel()

	v := Value(42)
	n, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	assert.True(t, v.IsValue())

	var zero Field[int]
	assert.True(t, zero.IsAbsent(), "zero value must be Absent")
	assert.Equal(t, 7, zero.OrElse(7))

	f := Failed[int]()
	assert.True(t, f.IsFailed())
	_, ok = f.Get()
	assert.False(t, ok)

	assert.True(t, Miss[int](StateFailed).IsFailed())
	assert.True(t, Miss[int](StateAbsent).IsAbsent())
	assert.True(t, Miss[int](StateValue).IsAbsent())
}

func TestFieldJSONKeepsSentinelsDistinct(t *testing.T) {
	t.Parallel()

	type row struct {
		A Field[int]    `json:"a"`
		B Field[int]    `json:"b"`
		C Field[int]    `json:"c"`
		D Field[string] `json:"d"`
	}
	data, err := json.Marshal(row{A: Value(0), B: Absent[int](), C: Failed[int](), D: Value("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0,"b":null,"c":{"failed":true},"d":"x"}`, string(data))

	var back row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Value(0), back.A)
	assert.True(t, back.B.IsAbsent())
	assert.True(t, back.C.IsFailed())
	assert.Equal(t, Value("x"), back.D)
}

func TestFieldJSONTextNamedFailedStaysValue(t *testing.T) {
	t.Parallel()

	type row struct {
		Host   Field[string] `json:"host"`
		Status Field[string] `json:"status"`
	}
	data, err := json.Marshal(row{Host: Value("failed"), Status: Failed[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"failed","status":{"failed":true}}`, string(data))

	var back row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Value("failed"), back.Host)
	assert.True(t, back.Status.IsFailed())
}

func TestFieldString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12", Value(12).String())
	assert.Equal(t, "<absent>", Absent[int]().String())
	assert.Equal(t, "<failed>", Failed[string]().String())
}
