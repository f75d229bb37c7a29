package providers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chillserv/fieldops/internal/observability/metrics"
	"github.com/chillserv/fieldops/internal/providers/email"
	"github.com/chillserv/fieldops/internal/providers/pdf"
)

// CompletionNotifier delivers the receipt for a completed job.
// Invoked fire-and-forget after the Completed transition commits; a
// failure here never unwinds the transition.
type CompletionNotifier interface {
	SendCompletionReceipt(ctx context.Context, data pdf.ReceiptData)
}

type completionMailer struct {
	pdf   *pdf.Provider
	email email.Provider
	log   *zap.Logger
}

func NewCompletionMailer(pdfProvider *pdf.Provider, emailProvider email.Provider, log *zap.Logger) CompletionNotifier {
	return &completionMailer{
		pdf:   pdfProvider,
		email: emailProvider,
		log:   log.Named("completion"),
	}
}

func (m *completionMailer) SendCompletionReceipt(ctx context.Context, data pdf.ReceiptData) {
	document, err := m.pdf.GenerateJobReceipt(ctx, data)
	if err != nil {
		m.log.Warn("receipt generation failed",
			zap.String("booking_id", data.BookingID),
			zap.Error(err),
		)
		metrics.Dispatch().NotificationResult(metrics.NotificationChannelEmail, err)
		return
	}

	subject := fmt.Sprintf("Your %s service is complete", data.Service)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your %s booking #%s has been completed. The receipt is attached.</p>",
		data.CustomerName, data.Service, data.BookingID,
	)
	err = m.email.Send(ctx, []string{data.CustomerEmail}, subject, body, email.Attachment{
		Filename:    fmt.Sprintf("receipt-%s.pdf", data.BookingID),
		ContentType: "application/pdf",
		Data:        document,
	})
	if err != nil {
		m.log.Warn("completion email failed",
			zap.String("booking_id", data.BookingID),
			zap.String("recipient", data.CustomerEmail),
			zap.Error(err),
		)
	}
	metrics.Dispatch().NotificationResult(metrics.NotificationChannelEmail, err)
}
