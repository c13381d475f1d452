// Package events 订单与车辆目录变更事件总线
//
// 配置了 NATS 时经 NATS 发布（携带 OpenTelemetry 追踪上下文），否则在进程内直接分发。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/observability"
)

// 主题
const (
	SubjectOrderUpdated   = "partfit.orders.updated"
	SubjectCatalogChanged = "partfit.catalog.changed"
)

const tracerName = "github.com/langchou/partfit/internal/events"

// headerCarrier 将 NATS 消息头适配为 OTel TextMapCarrier
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

type localHandler struct {
	id int
	fn func(context.Context, []byte)
}

// Bus 事件总线
type Bus struct {
	nc     *nats.Conn
	logger *zap.Logger

	mu     sync.RWMutex
	nextID int
	local  map[string][]localHandler
}

// NewBus 创建事件总线；nc 为 nil 时只在进程内分发
func NewBus(nc *nats.Conn, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		nc:     nc,
		logger: logger,
		local:  make(map[string][]localHandler),
	}
}

// Connect 连接 NATS
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("partfit"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Remote 是否经 NATS 分发
func (b *Bus) Remote() bool {
	return b.nc != nil
}

// Close 关闭连接
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Drain()
	}
}

// Publish 将 v 序列化为 JSON 发布到 subject
func Publish[T any](ctx context.Context, b *Bus, subject string, v T) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "publish "+subject,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", subject),
			attribute.Bool("messaging.remote", b.nc != nil),
		))
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal event")
		return fmt.Errorf("marshal event: %w", err)
	}

	if b.nc != nil {
		msg := &nats.Msg{Subject: subject, Data: data}
		otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
		if err := b.nc.PublishMsg(msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish")
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	}

	b.mu.RLock()
	handlers := append([]localHandler(nil), b.local[subject]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h.fn(ctx, data)
	}
	return nil
}

// Subscribe 订阅 subject，消息反序列化为 T；无法解析的消息被丢弃
// 返回的函数用于取消订阅
func Subscribe[T any](b *Bus, subject string, handler func(context.Context, T)) (func(), error) {
	decode := func(ctx context.Context, data []byte) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "handle "+subject,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attribute.String("messaging.destination.name", subject)))
		defer span.End()

		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed event")
			b.logger.Warn("Dropping malformed event",
				append(observability.TraceFields(ctx),
					zap.String("subject", subject),
					zap.Error(err))...)
			return
		}
		handler(ctx, v)
	}

	if b.nc != nil {
		sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
			ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
			decode(ctx, msg.Data)
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		return func() { _ = sub.Unsubscribe() }, nil
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.local[subject] = append(b.local[subject], localHandler{id: id, fn: decode})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.local[subject]
		for i, h := range handlers {
			if h.id == id {
				b.local[subject] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
	}, nil
}
