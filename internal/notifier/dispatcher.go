package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"hirepath/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull 队列已满，通知被丢弃。
	ErrQueueFull = errors.New("notification queue full")
	// ErrStopped 分发器已停止，不再接收通知。
	ErrStopped = errors.New("dispatcher stopped")
	// ErrPending 投递尚未完成。
	ErrPending = errors.New("delivery pending")
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
)

// DispatcherConfig 分发器配置。
type DispatcherConfig struct {
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	SendTimeout string `yaml:"send_timeout"`
}

func (c DispatcherConfig) withDefaults() (workers, queue int, timeout time.Duration, err error) {
	workers, queue, timeout = c.Workers, c.QueueSize, defaultSendTimeout
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queue <= 0 {
		queue = defaultQueueSize
	}
	if c.SendTimeout != "" {
		timeout, err = time.ParseDuration(c.SendTimeout)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("parse send_timeout: %w", err)
		}
		if timeout <= 0 {
			return 0, 0, 0, fmt.Errorf("send_timeout must be positive")
		}
	}
	return workers, queue, timeout, nil
}

// Journal 记录投递结果，写入失败仅记日志。
type Journal interface {
	RecordDelivery(ctx context.Context, rec *model.DeliveryRecord) error
}

// Receipt 单条通知的投递回执。调用方可选择等待或忽略。
type Receipt struct {
	ID     string
	done   chan struct{}
	status model.DeliveryStatus
	err    error
}

func newReceipt(id string) *Receipt {
	return &Receipt{ID: id, done: make(chan struct{})}
}

// Done 投递结束（成功、失败或丢弃）时关闭。
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Err 返回投递错误；尚未结束时返回 ErrPending。
func (r *Receipt) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return ErrPending
	}
}

// Status 返回投递状态；尚未结束时为空。
func (r *Receipt) Status() model.DeliveryStatus {
	select {
	case <-r.done:
		return r.status
	default:
		return ""
	}
}

// Wait 阻塞到投递结束或 ctx 取消。
func (r *Receipt) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Receipt) complete(status model.DeliveryStatus, err error) {
	r.status = status
	r.err = err
	close(r.done)
}

type delivery struct {
	msg     Message
	receipt *Receipt
}

// Dispatcher 异步投递通知：Dispatch 立即返回，由 Start 启动的 worker 发送。
// 每条通知至多发送一次，失败不重试。
type Dispatcher struct {
	from    string
	sender  EmailSender
	journal Journal
	logger  *log.Logger

	queue   chan delivery
	workers int
	timeout time.Duration
	newID   func() string

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher 创建分发器，journal 可为 nil。
func NewDispatcher(cfg DispatcherConfig, from string, sender EmailSender, journal Journal, logger *log.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	workers, queue, timeout, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[dispatch] ", log.LstdFlags)
	}
	return &Dispatcher{
		from:    from,
		sender:  sender,
		journal: journal,
		logger:  logger,
		queue:   make(chan delivery, queue),
		workers: workers,
		timeout: timeout,
		newID:   uuid.NewString,
	}, nil
}

// Dispatch 渲染并入队，不阻塞调用方。入队失败时回执立即结束为 DROPPED。
func (d *Dispatcher) Dispatch(n Notification) *Receipt {
	r := newReceipt(d.newID())
	msg, err := n.Render()
	if err != nil {
		d.drop(msg, r, fmt.Errorf("render: %w", err))
		return r
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(msg, r, ErrStopped)
		return r
	}
	select {
	case d.queue <- delivery{msg: msg, receipt: r}:
	default:
		d.drop(msg, r, ErrQueueFull)
	}
	return r
}

// Start 启动 worker 并阻塞到 ctx 取消，随后丢弃队列中剩余的通知。
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Printf("dispatcher started workers=%d queue=%d", d.workers, cap(d.queue))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	err := g.Wait()
	d.stop()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			d.deliver(ctx, job)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job delivery) {
	// 已取出的通知即使在关闭过程中也发送完毕。
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	err := d.sender.Send(sendCtx, EmailMessage{
		From:    d.from,
		To:      []string{job.msg.Recipient},
		Subject: job.msg.Subject,
		Body:    job.msg.BodyHTML,
	})
	status := model.DeliverySent
	if err != nil {
		status = model.DeliveryFailed
		d.logger.Printf("send %s to %s failed: %v", job.msg.Kind, job.msg.Recipient, err)
	}
	d.record(sendCtx, job.msg, job.receipt.ID, status, err)
	job.receipt.complete(status, err)
}

func (d *Dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	for {
		select {
		case job := <-d.queue:
			d.drop(job.msg, job.receipt, ErrStopped)
		default:
			d.logger.Printf("dispatcher stopped")
			return
		}
	}
}

// drop 只写日志，不访问 journal，保证 Dispatch 不会因存储阻塞。
func (d *Dispatcher) drop(msg Message, r *Receipt, err error) {
	d.logger.Printf("drop %s to %q: %v", msg.Kind, msg.Recipient, err)
	r.complete(model.DeliveryDropped, err)
}

func (d *Dispatcher) record(ctx context.Context, msg Message, receiptID string, status model.DeliveryStatus, sendErr error) {
	if d.journal == nil {
		return
	}
	rec := &model.DeliveryRecord{
		ReceiptID: receiptID,
		Kind:      string(msg.Kind),
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Status:    status,
		Metadata:  msg.Metadata,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	// 发送超时后仍需留出写日志的时间。
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
	}
	if err := d.journal.RecordDelivery(ctx, rec); err != nil {
		d.logger.Printf("record delivery %s: %v", receiptID, err)
	}
}
