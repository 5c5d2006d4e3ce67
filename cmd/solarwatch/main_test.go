package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	name   string
	err    error
	closed *[]string
}

func (c recordingCloser) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()

	t.Run("ClosesInOrder", func(t *testing.T) {
		var closed []string
		ok := closeAll(ctx,
			namedCloser{"alert publisher", recordingCloser{name: "pub", closed: &closed}},
			namedCloser{"storage", recordingCloser{name: "db", closed: &closed}},
		)
		assert.True(t, ok)
		assert.Equal(t, []string{"pub", "db"}, closed)
	})

	t.Run("FailureDoesNotSkipRest", func(t *testing.T) {
		var closed []string
		ok := closeAll(ctx,
			namedCloser{"alert publisher", recordingCloser{name: "pub", err: errors.New("flush failed"), closed: &closed}},
			namedCloser{"storage", recordingCloser{name: "db", closed: &closed}},
		)
		assert.False(t, ok)
		assert.Equal(t, []string{"pub", "db"}, closed)
	})
}
