package service

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"streetparking/internal/repository"
)

// SenderService delivers fine and overtime notices to car owners over email
// (SendGrid) and SMS (Twilio). Delivery is best-effort: failures are logged,
// never surfaced to the operation that triggered the notice.
type SenderService struct {
	registry repository.RegistryStore
}

func NewSenderService(registry repository.RegistryStore) *SenderService {
	return &SenderService{registry: registry}
}

// FineIssued notifies the car owner that a late fine landed on the car.
func (s *SenderService) FineIssued(plate string, amount int64) {
	car, err := s.registry.GetCar(plate)
	if err != nil || car == nil {
		log.Printf("ALERT: cannot load contact for car %s, fine notice not sent: %v", plate, err)
		return
	}

	subject := fmt.Sprintf("Parking fine issued for %s", plate)
	body := fmt.Sprintf(
		"Hello,\n\nYour car %s was unparked after its prepaid time ran out and a fine of %d was added.\n"+
			"The fine must be paid before the amount is cleared from the car's record.\n\n"+
			"StreetParking",
		plate, amount,
	)
	sms := fmt.Sprintf("StreetParking: a fine of %d was issued for %s. Please settle it from your account.", amount, plate)

	s.deliver(car.OwnerEmail, car.OwnerPhone, subject, body, sms, plate)
}

// OvertimeWarning tells the owner a parked car has outrun its prepaid balance.
func (s *SenderService) OvertimeWarning(session repository.OverdueSession) {
	parkedFor := time.Since(session.ParkedAt).Round(time.Minute)
	subject := fmt.Sprintf("Parking balance exhausted for %s", session.Plate)
	body := fmt.Sprintf(
		"Hello,\n\nYour car %s has been parked for %s and its prepaid balance no longer covers the metered fee.\n"+
			"A flat fine will be added when the car is unparked. Top up the balance or unpark soon.\n\n"+
			"StreetParking",
		session.Plate, parkedFor,
	)
	sms := fmt.Sprintf("StreetParking: car %s has run out of prepaid parking. A fine applies at checkout.", session.Plate)

	s.deliver(session.OwnerEmail, session.OwnerPhone, subject, body, sms, session.Plate)
}

func (s *SenderService) deliver(email, phone, subject, body, sms, plate string) {
	if email != "" {
		go func() {
			if err := sendEmailWithSendGrid(email, subject, body); err != nil {
				log.Printf("ALERT (async): email notice for car %s failed: %v", plate, err)
			}
		}()
	}
	if phone != "" {
		go func() {
			if err := sendSMS(phone, sms); err != nil {
				log.Printf("ALERT (async): SMS notice for car %s failed: %v", plate, err)
			}
		}()
	}
}

func sendEmailWithSendGrid(toEmail, subject, plainTextContent string) error {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not configured")
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is not configured")
	}
	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "StreetParking"
	}

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, "")

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sending email through SendGrid failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("SendGrid returned status %d: %s", response.StatusCode, response.Body)
	}
	log.Printf("Notice email sent to %s (subject: %s)", toEmail, subject)
	return nil
}

func sendSMS(toNumber, messageBody string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")
	if accountSid == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("Twilio credentials are not fully configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("Destination number '%s' is not E.164, the SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetBody(messageBody)

	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
