package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weathervision/internal/modules/weather/types"
)

func TestPublishLines(t *testing.T) {
	input := `{"city":"Oslo","temperature":-1}

{"city":"Bergen","temperature":4.5}
`
	var got []string
	n, err := publishLines(strings.NewReader(input), func(in types.RecordInput) error {
		got = append(got, *in.City)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Oslo", "Bergen"}, got)
}

func TestPublishLines_InvalidJSON(t *testing.T) {
	n, err := publishLines(strings.NewReader("{\"city\":\"Oslo\"}\nnot json\n"), func(types.RecordInput) error { return nil })

	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "line 2")
}

func TestPublishLines_PublishError(t *testing.T) {
	boom := errors.New("broker gone")
	n, err := publishLines(strings.NewReader(`{"city":"Oslo"}`), func(types.RecordInput) error { return boom })

	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, boom)
}
