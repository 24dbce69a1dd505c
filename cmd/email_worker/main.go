package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/platformlab/auth-service/config"
	"github.com/platformlab/auth-service/pkg/events"
	"github.com/platformlab/auth-service/pkg/mailer"
)

// The worker is the downstream consumer of the auth lifecycle events: it
// binds a durable queue to the headers exchange with per-event-type
// filters and turns events into emails. Redelivery after a failed send
// gives at-least-once behavior end to end.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if !cfg.MailSendEnabled {
		log.Println("MAIL_SEND_ENABLED=false; email worker disabled (no real emails will be sent)")
		return
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("Mailgun not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if err := ch.ExchangeDeclare(cfg.EventsExchange, amqp.ExchangeHeaders, true, false, false, false, nil); err != nil {
		log.Fatalf("exchange declare: %v", err)
	}
	if _, err := ch.QueueDeclare(cfg.NotifierQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}
	// One binding per event type this worker cares about; the exchange
	// routes on the event_type header.
	for _, eventType := range []string{events.TypeUserRegistered, events.TypeUserLoggedIn} {
		args := amqp.Table{"x-match": "all", events.AttrEventType: eventType}
		if err := ch.QueueBind(cfg.NotifierQueue, "", cfg.EventsExchange, false, args); err != nil {
			log.Fatalf("queue bind %s: %v", eventType, err)
		}
	}

	msgs, err := ch.Consume(cfg.NotifierQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	ctx := context.Background()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var ev events.Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				log.Printf("bad message: %v", err)
				_ = msg.Nack(false, false)
				continue
			}

			to, _ := ev.Payload["email"].(string)
			if to == "" {
				log.Printf("event %s without email payload", ev.Type)
				_ = msg.Nack(false, false)
				continue
			}
			subject, text := composeEmail(ev)

			c, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := mg.Send(c, to, subject, text); err != nil {
				cancel()
				log.Printf("send failed: %v", err)
				_ = msg.Nack(false, true)
				continue
			}
			cancel()
			_ = msg.Ack(false)
		}
		close(done)
	}()

	log.Printf("email worker listening on queue=%s exchange=%s", cfg.NotifierQueue, cfg.EventsExchange)
	<-stop
	log.Printf("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func composeEmail(ev events.Event) (subject, text string) {
	name, _ := ev.Payload["name"].(string)
	business, _ := ev.Payload["business"].(string)
	if name == "" {
		name = "there"
	}
	switch ev.Type {
	case events.TypeUserRegistered:
		subject = "Welcome to " + business
		text = fmt.Sprintf("Hi %s,\n\nYour account on %s is ready.\n", name, business)
	case events.TypeUserLoggedIn:
		subject = "New login to your account"
		text = fmt.Sprintf("Hi %s,\n\nWe noticed a new login to your %s account. If this wasn't you, reset your password.\n", name, business)
	default:
		subject = "Notification"
		text = fmt.Sprintf("Hi %s,\n\nSomething happened on your account.\n", name)
	}
	return subject, text
}
