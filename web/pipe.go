package web

import (
	"sync"

	"ergo.services/actor/future"
)

// Pipe is an in-memory stream with a future based read side. It is used for
// streaming response bodies: the handler keeps the writer, the response
// carries the reader.
type Pipe struct {
	data *pipeData
}

type PipeReader struct {
	data *pipeData
}

type PipeWriter struct {
	data *pipeData
}

type pipeData struct {
	sync.Mutex

	readClosed  bool
	writeClosed bool

	// pending reads, if any, mean there are no buffered writes
	reads  []*future.Promise[string]
	writes []string

	readerClosed *future.Promise[struct{}]
}

func NewPipe() *Pipe {
	return &Pipe{
		data: &pipeData{
			readerClosed: future.NewPromise[struct{}](),
		},
	}
}

func (p *Pipe) Reader() *PipeReader {
	return &PipeReader{data: p.data}
}

func (p *Pipe) Writer() *PipeWriter {
	return &PipeWriter{data: p.data}
}

// Read returns a future of the next chunk. An empty chunk means the writer
// has closed the pipe and there is no data left. Read on the closed reader
// returns a failed future.
func (r *PipeReader) Read() future.Future[string] {
	d := r.data
	d.Lock()
	defer d.Unlock()

	if d.readClosed {
		return future.Failed[string](ErrPipeClosed)
	}
	if len(d.writes) > 0 {
		chunk := d.writes[0]
		d.writes = d.writes[1:]
		return future.Ready(chunk)
	}
	if d.writeClosed {
		return future.Ready("")
	}

	promise := future.NewPromise[string]()
	d.reads = append(d.reads, promise)
	return promise.Future()
}

// Close closes the read end. Pending reads get discarded, subsequent writes
// fail. Returns false if it was already closed.
func (r *PipeReader) Close() bool {
	d := r.data
	d.Lock()
	if d.readClosed {
		d.Unlock()
		return false
	}
	d.readClosed = true
	d.writes = nil
	reads := d.reads
	d.reads = nil
	d.Unlock()

	for _, promise := range reads {
		promise.Discard()
	}
	d.readerClosed.Set(struct{}{})
	return true
}

// Write appends a chunk. Returns false if either end is closed.
// Empty chunks are ignored since they denote the end of the stream.
func (w *PipeWriter) Write(chunk string) bool {
	d := w.data
	d.Lock()
	if d.readClosed || d.writeClosed {
		d.Unlock()
		return false
	}
	if chunk == "" {
		d.Unlock()
		return true
	}
	if len(d.reads) == 0 {
		d.writes = append(d.writes, chunk)
		d.Unlock()
		return true
	}
	promise := d.reads[0]
	d.reads = d.reads[1:]
	d.Unlock()

	promise.Set(chunk)
	return true
}

// Close closes the write end. Pending reads are completed with an empty chunk.
func (w *PipeWriter) Close() bool {
	d := w.data
	d.Lock()
	if d.writeClosed {
		d.Unlock()
		return false
	}
	d.writeClosed = true
	reads := d.reads
	d.reads = nil
	d.Unlock()

	for _, promise := range reads {
		promise.Set("")
	}
	return true
}

// ReaderClosed returns a future resolved once the reader closes the pipe.
// It lets the writer stop producing when the client has gone.
func (w *PipeWriter) ReaderClosed() future.Future[struct{}] {
	return w.data.readerClosed.Future()
}
