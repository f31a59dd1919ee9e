package io_test

import (
	"path/filepath"
	"testing"

	p "freelaw.courtlistener.cl-update-index/pkg/pipeline"
	pio "freelaw.courtlistener.cl-update-index/pkg/pipeline/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentDirections(t *testing.T) {
	config := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := pio.CreateReader(p.PRODUCER, config)
	assert.EqualError(t, err, pio.ErrReaderNotSupported)

	_, err = pio.CreateWriter(p.CONSUMER, config)
	assert.EqualError(t, err, pio.ErrWriterNotSupported)
}

func TestEmbeddedByDefault(t *testing.T) {
	config := filepath.Join(t.TempDir(), "missing.yaml")

	w, err := pio.CreateWriter(p.PRODUCER, config)
	require.NoError(t, err)
	assert.NotNil(t, w)

	r, err := pio.CreateReader(p.CONSUMER, config)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
