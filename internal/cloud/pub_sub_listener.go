// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// MaxDeliveryAttempts bounds redelivery of a message whose run keeps failing
// upstream. It only applies when the subscription reports delivery attempts.
const MaxDeliveryAttempts = 5

// PubSubListener feeds every message of one subscription to a command. The
// message body is placed in cor.CtxIn as a string. See Settle for how each
// outcome is acknowledged.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) (*PubSubListener, error) {
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen receives in a background goroutine until ctx is canceled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.InfoContext(ctx, "listening", "subscription", m.subscription.String())
	go func() {
		tracer := otel.Tracer("message-listener")
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("message_id", msg.ID))

			if m.command == nil {
				slog.ErrorContext(spanCtx, "no command attached to listener", "subscription", m.subscription.String())
				span.SetStatus(codes.Error, "no command")
				return
			}

			chainCtx := cor.NewBaseContext()
			chainCtx.SetContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))
			m.command.Execute(chainCtx)

			err := cor.Err(chainCtx)
			if err == nil {
				span.SetStatus(codes.Ok, "success")
			} else {
				span.SetStatus(codes.Error, "failed")
			}
			if Settle(msg, msg.DeliveryAttempt, err) {
				slog.WarnContext(spanCtx, "run failed upstream, message will be redelivered", "message_id", msg.ID, "error", err)
			} else if err != nil {
				slog.ErrorContext(spanCtx, "run failed permanently, dropping message", "message_id", msg.ID, "error", err)
			}
		})
		if err != nil {
			slog.ErrorContext(ctx, "error receiving data", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

// Acknowledger is the settling half of a received message.
type Acknowledger interface {
	Ack()
	Nack()
}

// Settle acknowledges msg unless err is a transient upstream failure, which
// is nacked for redelivery until MaxDeliveryAttempts is reached. Bad
// requests and empty or malformed runs fail the same way every time, so they
// are acknowledged and dropped. It reports whether msg was nacked.
func Settle(msg Acknowledger, deliveryAttempt *int, err error) bool {
	if err != nil && errors.Is(err, model.ErrUpstreamUnavailable) &&
		(deliveryAttempt == nil || *deliveryAttempt < MaxDeliveryAttempts) {
		msg.Nack()
		return true
	}
	msg.Ack()
	return false
}
