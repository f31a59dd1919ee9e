package io

import (
	"errors"

	"freelaw.courtlistener.cl-update-index/pkg/pipeline"
)

const (
	InvalidPayloadError = "invalid payload [err = %v]: %v"
)

var (
	// ErrQueueEmpty is returned by Read when nothing arrived within the reader's operation timeout
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrReaderClosed is returned by Read once the reader was closed
	ErrReaderClosed = errors.New("reader closed")
)

// Reader defines a pipeline reader
type Reader interface {
	Open() error
	Close()
	Read() ([]byte, error)
}
type ReaderFactory func(pipeline.ReaderParams) (Reader, error)

// Writer defines a pipeline writer
type Writer interface {
	Open() error
	Close()
	Write([]byte) error
}
type WriterFactory func(pipeline.WriterParams) (Writer, error)
