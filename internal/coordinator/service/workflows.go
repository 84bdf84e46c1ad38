package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/script"
)

// Workflow pacing before time scaling.
const (
	ReplyDelay       = 1500 * time.Millisecond
	NotifyDelay      = 2000 * time.Millisecond
	RouteDelay       = 1500 * time.Millisecond
	CallRequestDelay = 1000 * time.Millisecond
	CustomerDelay    = 1000 * time.Millisecond
)

const (
	workflowSendMessage = "send_message"
	workflowDriverDelay = "driver_delay_inquiry"
)

// SendMessage appends content as a user message, waits, then appends one
// system log and the canned agent reply of the message's branch. It blocks
// until the script completes or ctx ends.
func (s *Service) SendMessage(ctx context.Context, content string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	return s.run(ctx, s.sendMessageScript(content))
}

// ProcessDriverDelayInquiry runs the four-step delay response for customerID.
// customerID is recorded as given.
func (s *Service) ProcessDriverDelayInquiry(ctx context.Context, customerID, content string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	return s.run(ctx, s.driverDelayScript(customerID, content))
}

// SubmitRequest is one customer input entering through a front door.
type SubmitRequest struct {
	CustomerID string
	Content    string
}

// Submit classifies the input and starts the matching workflow in the
// background. It returns as soon as the workflow has claimed the processing
// flag.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (intent.Intent, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", ErrEmptyMessage
	}

	kind := intent.Classify(req.Content)
	var err error
	if kind == intent.DelayInquiry {
		err = s.StartDriverDelayInquiry(ctx, req.CustomerID, req.Content)
	} else {
		err = s.StartSendMessage(ctx, req.Content)
	}
	if err != nil {
		return kind, err
	}
	s.logger.WithContext(ctx).Info("customer input accepted", zap.String("intent", string(kind)))
	return kind, nil
}

// StartSendMessage is the background variant of SendMessage.
func (s *Service) StartSendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	s.background(s.sendMessageScript(content))
	return nil
}

// StartDriverDelayInquiry is the background variant of
// ProcessDriverDelayInquiry. An empty customerID falls back to the configured
// default customer.
func (s *Service) StartDriverDelayInquiry(ctx context.Context, customerID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if customerID == "" {
		customerID = s.cfg.DefaultCustomerID
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	s.background(s.driverDelayScript(customerID, content))
	return nil
}

// background runs sc on the service lifetime. The caller holds the flag.
func (s *Service) background(sc script.Script) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.run(s.ctx, sc); err != nil {
			s.logger.Warn("workflow interrupted", zap.String("workflow", sc.Name), zap.Error(err))
		}
	}()
}

// run executes sc and releases the processing flag however it ends.
func (s *Service) run(ctx context.Context, sc script.Script) error {
	defer s.end(context.WithoutCancel(ctx))

	ctx, span := s.tracer.Start(ctx, "coordinator."+sc.Name)
	span.SetAttributes(attribute.Int("workflow.steps", len(sc.Steps)))
	defer span.End()

	s.logger.Info("workflow started", zap.String("workflow", sc.Name))
	if err := s.runner.Run(ctx, sc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", sc.Name, err)
	}
	s.logger.Info("workflow completed", zap.String("workflow", sc.Name))
	return nil
}

func (s *Service) sendMessageScript(content string) script.Script {
	return script.Script{
		Name: workflowSendMessage,
		Steps: []script.Step{
			{Name: "user_message", Apply: func(ctx context.Context) {
				s.appendMessage(ctx, messageDraft{Content: content, Sender: models.SenderUser})
			}},
			{Name: "agent_reply", Delay: ReplyDelay, Apply: func(ctx context.Context) {
				r := replyFor(intent.ReplyBranch(content))
				s.appendLog(ctx, r.log)
				s.appendMessage(ctx, messageDraft{Content: r.content, Sender: models.SenderAgent, Actions: r.actions})
			}},
		},
	}
}

func (s *Service) driverDelayScript(customerID, content string) script.Script {
	return script.Script{
		Name: workflowDriverDelay,
		Steps: []script.Step{
			{Name: "customer_message", Apply: func(ctx context.Context) {
				s.appendMessage(ctx, messageDraft{Content: content, Sender: models.SenderUser, Priority: models.PriorityHigh})
			}},
			{Name: "notify_driver", Delay: NotifyDelay, Apply: func(ctx context.Context) {
				s.appendLog(ctx, logDraft{
					Type:        models.LogTypeDriverNotification,
					Action:      "Driver Notification Sent",
					Description: `Notified driver D001: "Customer is waiting for you."`,
					Metadata:    map[string]any{"driverId": delayDriverID, "customerId": customerID, "notificationType": "customer_waiting"},
					DriverID:    delayDriverID,
					CustomerID:  customerID,
				})
				s.setLastAction(models.AgentAction{
					Type:       models.ActionNotifyDriver,
					DriverID:   delayDriverID,
					CustomerID: customerID,
					Message:    "Customer is waiting for you.",
				})
			}},
			{Name: "alternative_route", Delay: RouteDelay, Apply: func(ctx context.Context) {
				s.appendLog(ctx, logDraft{
					Type:        models.LogTypeRouteCalculation,
					Action:      "Alternative Route Calculated",
					Description: "Found shorter path via Main St, ETA reduced by 4 minutes",
					Metadata:    map[string]any{"originalETA": "8 min", "newETA": "4 min", "routeImprovement": "50%"},
				})
				s.setLastAction(models.AgentAction{
					Type:     models.ActionCalculateRoute,
					DriverID: delayDriverID,
					Metadata: map[string]any{"newETA": "4 min"},
				})
			}},
			{Name: "call_request", Delay: CallRequestDelay, Apply: func(ctx context.Context) {
				s.appendLog(ctx, logDraft{
					Type:        models.LogTypeDriverNotification,
					Action:      "Call Request Sent to Driver",
					Description: "Requested driver to call customer and explain situation",
					Metadata:    map[string]any{"driverId": delayDriverID, "customerId": customerID, "action": "call_customer"},
					DriverID:    delayDriverID,
					CustomerID:  customerID,
				})
				s.setLastAction(models.AgentAction{
					Type:       models.ActionNotifyDriver,
					DriverID:   delayDriverID,
					CustomerID: customerID,
					Message:    "Please call the customer and explain the situation.",
				})
			}},
			{Name: "customer_update", Delay: CustomerDelay, Apply: func(ctx context.Context) {
				s.appendLog(ctx, logDraft{
					Type:        models.LogTypeCustomerUpdate,
					Action:      "Customer Notification Sent",
					Description: "Informed customer: Driver stuck in traffic, rerouting now",
					Metadata:    map[string]any{"customerId": customerID, "reason": "traffic", "eta_update": "4 min"},
					CustomerID:  customerID,
				})
				s.setLastAction(models.AgentAction{
					Type:       models.ActionNotifyCustomer,
					CustomerID: customerID,
					Message:    "Driver stuck in traffic, rerouting now",
				})
				s.appendMessage(ctx, messageDraft{Content: delaySummary, Sender: models.SenderAgent, Actions: delayActions})
			}},
		},
	}
}
