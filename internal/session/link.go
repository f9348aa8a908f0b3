package session

import (
	"context"
	"sync"

	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/groutine"
	"github.com/srg/sensorlink/internal/ringchan"
)

// link is one live connection: the subscribed notify characteristic, its frame
// queue and the goroutines draining and watching it.
type link struct {
	id     string
	conn   device.Connection
	notify device.Characteristic
	frames *ringchan.RingChannel[[]byte]

	pipelineDone chan struct{}
	stopWatch    chan struct{}
	watchDone    chan struct{}
	stopOnce     sync.Once
}

func newLink(id string, conn device.Connection, notify device.Characteristic, queueSize int) *link {
	return &link{
		id:           id,
		conn:         conn,
		notify:       notify,
		frames:       ringchan.New[[]byte](queueSize),
		pipelineDone: make(chan struct{}),
		stopWatch:    make(chan struct{}),
		watchDone:    make(chan struct{}),
	}
}

// push is the notification handler. It never blocks the transport; when the
// pipeline lags, the oldest queued frame is overwritten.
func (l *link) push(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)
	l.frames.ForceSend(frame)
}

// startPipeline drains frames in order until the queue is closed.
func (l *link) startPipeline(m *Manager) {
	groutine.Go(context.Background(), "session-pipeline-"+l.id, func(ctx context.Context) {
		defer close(l.pipelineDone)
		for frame := range l.frames.C() {
			m.process(l.id, frame)
		}
		if dropped := l.frames.Dropped(); dropped > 0 {
			m.logger.WithField("device_id", l.id).
				WithField("dropped", dropped).
				Warn("Frames overwritten while the pipeline lagged")
		}
	})
}

// stopPipeline closes the queue and waits until buffered frames are processed.
func (l *link) stopPipeline() {
	l.frames.Close()
	<-l.pipelineDone
}

// watch turns a transport-reported disconnect into linkLost.
func (l *link) watch(m *Manager, s *session) {
	groutine.Go(context.Background(), "session-monitor-"+l.id, func(ctx context.Context) {
		defer close(l.watchDone)
		select {
		case <-l.conn.Disconnected():
			m.linkLost(s, l)
		case <-l.stopWatch:
		}
	})
}

// close stops the watcher and drops the connection. Only for watched links.
func (l *link) close() error {
	l.stopOnce.Do(func() { close(l.stopWatch) })
	err := l.conn.Disconnect()
	<-l.watchDone
	return err
}
