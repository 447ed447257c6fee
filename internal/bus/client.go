package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/apperror"
)

// Handler processes one inbound message's body and returns the reply
// body to publish back to ReplyTo (nil if the route has no reply).
type Handler func(ctx context.Context, body []byte) ([]byte, error)

// Client wraps an amqp091-go channel in confirm-select mode, enabled on
// the client side for publish acknowledgement, and dispatches inbound
// deliveries to registered route handlers by routing key.
type Client struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	appID   string
	exchange string
	logger  *zap.Logger
	routes  map[string]Handler
}

// Dial connects to url, opens a confirm-select channel, and declares the
// topic exchange every route publishes/consumes through.
func Dial(url, exchange, appID string, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	client := &Client{conn: conn, ch: ch, appID: appID, exchange: exchange, logger: logger, routes: make(map[string]Handler)}

	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	go func() {
		for ret := range returns {
			if logger != nil {
				logger.Warn("message unroutable, returned by broker",
					zap.String("routing_key", ret.RoutingKey), zap.String("reply_code", fmt.Sprint(ret.ReplyCode)))
			}
		}
	}()

	return client, nil
}

func (c *Client) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Register binds route to h; a queue named after the route is declared
// and bound to the exchange under that routing key.
func (c *Client) Register(route string, h Handler) error {
	q, err := c.ch.QueueDeclare(route, true, false, false, false, nil)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	if err := c.ch.QueueBind(q.Name, route, c.exchange, false, nil); err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	c.routes[route] = h
	return nil
}

// Consume starts delivering messages for every registered route until ctx
// is cancelled. Each delivery is dispatched to its handler; the handler's
// reply (if any) is published to the delivery's ReplyTo with the same
// correlation id, mandatory and confirm-select as on every other publish.
func (c *Client) Consume(ctx context.Context) error {
	for route := range c.routes {
		deliveries, err := c.ch.Consume(route, "", false, false, false, false, nil)
		if err != nil {
			return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
		}
		go c.consumeRoute(ctx, route, deliveries)
	}
	<-ctx.Done()
	return nil
}

func (c *Client) consumeRoute(ctx context.Context, route string, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, route, d)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, route string, d amqp.Delivery) {
	handler := c.routes[route]
	reply, err := handler(ctx, d.Body)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("route handler failed", zap.String("route", route), zap.Error(err))
		}
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
	if reply == nil || d.ReplyTo == "" {
		return
	}
	if err := c.publish(ctx, d.ReplyTo, reply, d.CorrelationId); err != nil && c.logger != nil {
		c.logger.Error("failed to publish reply", zap.String("route", route), zap.Error(err))
	}
}

// Call publishes req to route with a fresh correlation id and waits for a
// reply on a private exclusive queue — the outbound-RPC half of
// rpc.product.get_product.
func (c *Client) Call(ctx context.Context, route string, req interface{}, out interface{}) error {
	replyQueue, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	envelope := NewEnvelope(c.appID, "rpc-", replyQueue.Name, time.Now())
	body, err := json.Marshal(req)
	if err != nil {
		return apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}

	deliveries, err := c.ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}

	confirms := c.ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	if err := c.ch.PublishWithContext(ctx, c.exchange, route, true, false, amqp.Publishing{
		ContentType:   envelope.ContentType,
		CorrelationId: envelope.CorrelationID,
		ReplyTo:       envelope.ReplyTo,
		AppId:         envelope.AppID,
		Timestamp:     envelope.Timestamp,
		Body:          body,
	}); err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", fmt.Errorf("publish to %s was nacked", route))
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case d := <-deliveries:
		if d.CorrelationId != envelope.CorrelationID {
			return apperror.New(apperror.KindDataCorruption, "DataCorruption", "reply correlation id mismatch")
		}
		if err := json.Unmarshal(d.Body, out); err != nil {
			return apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte, correlationID string) error {
	confirms := c.ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	if err := c.ch.PublishWithContext(ctx, c.exchange, routingKey, true, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		AppId:         c.appID,
		Timestamp:     time.Now(),
		Body:          body,
	}); err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", fmt.Errorf("publish to %s was nacked", routingKey))
		}
	case <-time.After(5 * time.Second):
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", fmt.Errorf("publish confirm timeout"))
	}
	return nil
}
