package blobstore

import (
	"errors"
	"io"
	"sync"
)

// ErrAborted is what an upload function reads once Abort is called.
var ErrAborted = errors.New("blobstore: upload aborted")

// UploadFunc consumes r until EOF and stores what it read.
type UploadFunc func(r io.Reader) error

type pipeWriter struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	finished bool
	err      error
}

// NewPipeWriter returns a WritableBlob whose writes stream into upload,
// which runs on its own goroutine. Close waits for upload and returns its
// error. Abort fails the stream with ErrAborted and waits as well.
func NewPipeWriter(upload UploadFunc) WritableBlob {
	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	finished := w.finished
	w.mu.Unlock()
	if finished {
		return 0, ErrClosed
	}
	return w.pw.Write(p)
}

func (w *pipeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		if w.err != nil {
			return w.err
		}
		return ErrClosed
	}
	w.finished = true
	if err := w.pw.Close(); err != nil {
		w.err = err
		return err
	}
	w.err = <-w.done
	return w.err
}

func (w *pipeWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return nil
	}
	w.finished = true
	_ = w.pw.CloseWithError(ErrAborted)
	<-w.done
	return nil
}
