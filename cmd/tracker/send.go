package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/notify"
	"github.com/ignite/email-tracker/internal/service/sending"
)

func init() {
	var (
		from, to, subject string
		htmlFile, text    string
		providerName      string
		batch             string
		noTracking        bool
	)

	sendCommand := &cobra.Command{
		Use:   "send",
		Short: "Send one tracked message through the configured transports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			bus := notify.NewBus(a.metrics)
			bus.OnAll(notify.LogSubscriber)
			pipeline, err := a.pipeline(ctx, bus)
			if err != nil {
				return err
			}

			req := sending.Request{
				Message: domain.Message{
					From:     domain.Address{Email: from},
					To:       []domain.Address{{Email: to}},
					Subject:  subject,
					TextBody: text,
				},
				Provider: domain.Provider(providerName),
				Batch:    batch,
			}
			if htmlFile != "" {
				body, err := os.ReadFile(htmlFile)
				if err != nil {
					return err
				}
				req.Message.HTMLBody = string(body)
			}
			if noTracking {
				opts := a.cfg.Tracking.TrackingOptions
				opts.DisableAll()
				req.Tracking = &opts
			}

			res, err := pipeline.Send(ctx, req)
			if err != nil {
				return err
			}
			switch res.Status {
			case sending.StatusSent:
				fmt.Printf("sent %s via %s (message id %s)\n", to, res.SentEmail.Provider, res.SentEmail.MessageID)
			case sending.StatusSuppressed:
				fmt.Printf("not sent: %s is suppressed (%s)\n", res.Email, res.Reason)
			default:
				fmt.Printf("not sent: %s\n", res.Status)
			}
			return nil
		},
	}

	f := sendCommand.Flags()
	f.StringVar(&from, "from", "", "sender address")
	f.StringVar(&to, "to", "", "recipient address")
	f.StringVar(&subject, "subject", "", "message subject")
	f.StringVar(&htmlFile, "html", "", "path to the HTML body")
	f.StringVar(&text, "text", "", "plain text body")
	f.StringVarP(&providerName, "provider", "p", "", "transport to send through (default from config)")
	f.StringVar(&batch, "batch", "", "batch name to group the send under")
	f.BoolVar(&noTracking, "no-tracking", false, "disable every tracking feature for this send")
	sendCommand.MarkFlagRequired("from")
	sendCommand.MarkFlagRequired("to")
	sendCommand.MarkFlagRequired("subject")
	rootCommand.AddCommand(sendCommand)
}
