package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	devicedomain "notification-relay/internal/device/domain"
	"notification-relay/internal/notification/domain"
	userdomain "notification-relay/internal/user/domain"
	"notification-relay/pkg/fcm"
	"notification-relay/pkg/queue"
)

type published struct {
	target queue.Target
	msg    any
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	// failDevices makes publishes for these device ids fail.
	failDevices map[uint]error
	full        bool
	err         error
}

func (p *fakePublisher) Publish(_ context.Context, target queue.Target, msg any, _ queue.PublishOptions) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	if m, ok := msg.(domain.DispatchMessage); ok {
		if err := p.failDevices[m.DeviceID]; err != nil {
			return false, err
		}
	}
	if p.full {
		return false, nil
	}
	p.messages = append(p.messages, published{target: target, msg: msg})
	return true, nil
}

func (p *fakePublisher) dispatches() []domain.DispatchMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.DispatchMessage
	for _, m := range p.messages {
		if d, ok := m.msg.(domain.DispatchMessage); ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *fakePublisher) events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.messages {
		if _, ok := m.msg.(domain.DoneEvent); ok {
			out = append(out, m)
		}
	}
	return out
}

type sendCall struct {
	token string
	n     fcm.Notification
}

type fakeGateway struct {
	mu          sync.Mutex
	sends       []sendCall
	err         error
	topicTokens []string
	topicResult *fcm.TopicResult
	// release, when set, blocks Send until closed.
	release chan struct{}
	started chan struct{}
}

func (g *fakeGateway) Send(_ context.Context, token string, n fcm.Notification) (string, error) {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, sendCall{token: token, n: n})
	if g.err != nil {
		return "", g.err
	}
	return "projects/demo/messages/" + token, nil
}

func (g *fakeGateway) SendToTopic(_ context.Context, topic string, n fcm.Notification) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, sendCall{token: "/topics/" + topic, n: n})
	if g.err != nil {
		return "", g.err
	}
	return "projects/demo/messages/topic", nil
}

func (g *fakeGateway) SubscribeToTopic(_ context.Context, tokens []string, _ string) (*fcm.TopicResult, error) {
	g.topicTokens = tokens
	return g.topicResult, g.err
}

func (g *fakeGateway) UnsubscribeFromTopic(_ context.Context, tokens []string, _ string) (*fcm.TopicResult, error) {
	g.topicTokens = tokens
	return g.topicResult, g.err
}

type fakeDevices struct {
	mu          sync.Mutex
	rows        []*devicedomain.Device
	deactivated []uint
	touched     []uint
	touchErr    error
}

func (d *fakeDevices) FindByID(_ context.Context, id uint) (*devicedomain.Device, error) {
	for _, row := range d.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (d *fakeDevices) FindByIDs(ctx context.Context, ids []uint) ([]*devicedomain.Device, error) {
	var out []*devicedomain.Device
	for _, id := range ids {
		if row, _ := d.FindByID(ctx, id); row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *fakeDevices) ListActive(context.Context) ([]*devicedomain.Device, error) {
	var out []*devicedomain.Device
	for _, row := range d.rows {
		if row.IsActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *fakeDevices) ListActiveByUser(_ context.Context, userID uint) ([]*devicedomain.Device, error) {
	var out []*devicedomain.Device
	for _, row := range d.rows {
		if row.IsActive && row.UserID != nil && *row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *fakeDevices) Deactivate(_ context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deactivated = append(d.deactivated, id)
	for _, row := range d.rows {
		if row.ID == id {
			row.IsActive = false
		}
	}
	return nil
}

func (d *fakeDevices) DeactivateByToken(_ context.Context, token string) error {
	for _, row := range d.rows {
		if row.DeviceToken == token {
			return d.Deactivate(context.Background(), row.ID)
		}
	}
	return nil
}

func (d *fakeDevices) TouchLastActive(_ context.Context, id uint, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched = append(d.touched, id)
	return d.touchErr
}

type fakeUsers map[uint]*userdomain.User

func (f fakeUsers) FindByID(_ context.Context, id uint) (*userdomain.User, error) {
	return f[id], nil
}

type fakeNotifications struct {
	mu     sync.Mutex
	rows   map[uint]*domain.Notification
	nextID uint
	err    error
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{rows: map[uint]*domain.Notification{}}
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	f.rows[n.ID] = n
	return nil
}

func (f *fakeNotifications) FindByID(_ context.Context, id uint) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeNotifications) List(_ context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	var out []*domain.Notification
	for _, n := range f.rows {
		if n.UserID == filter.UserID && (filter.Status == "" || n.Status == filter.Status) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotifications) MarkSent(_ context.Context, id uint, messageID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	n := f.rows[id]
	if n == nil || n.Status != domain.StatusPending {
		return false, nil
	}
	n.Status = domain.StatusSent
	n.FcmMessageID = &messageID
	n.SentAt = &at
	return true, nil
}

func (f *fakeNotifications) MarkFailed(_ context.Context, id uint, status domain.Status, code, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	n := f.rows[id]
	if n == nil || n.Status != domain.StatusPending {
		return false, nil
	}
	n.Status = status
	n.FcmErrorCode = &code
	n.FcmErrorMessage = &message
	return true, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id uint, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.rows[id]
	if n == nil {
		return false, nil
	}
	n.ReadAt = &at
	return true, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []*domain.FcmJob
	err  error
}

func (f *fakeJobs) Create(_ context.Context, job *domain.FcmJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	job.ID = uint(len(f.jobs) + 1)
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobs) List(_ context.Context, filter domain.FcmJobFilter) ([]*domain.FcmJob, int64, error) {
	var out []*domain.FcmJob
	for _, j := range f.jobs {
		if filter.DeviceID == nil || j.DeviceID == *filter.DeviceID {
			out = append(out, j)
		}
	}
	return out, int64(len(out)), nil
}

// fakeQueue feeds deliveries to the registered handler.
type fakeQueue struct {
	mu         sync.Mutex
	consumes   int
	deliveries chan queue.Delivery
	results    chan error
	// failWith makes Consume return immediately with this error.
	failWith error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{deliveries: make(chan queue.Delivery), results: make(chan error, 16)}
}

func (q *fakeQueue) Consume(ctx context.Context, _ string, handler queue.Handler) error {
	q.mu.Lock()
	q.consumes++
	failWith := q.failWith
	q.mu.Unlock()
	if failWith != nil {
		return failWith
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-q.deliveries:
			q.results <- handler(context.WithoutCancel(ctx), d)
		}
	}
}

func (q *fakeQueue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failWith = err
}

func (q *fakeQueue) consumeCalls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumes
}

var errBroker = errors.New("broker unavailable")

func ptr[T any](v T) *T { return &v }
