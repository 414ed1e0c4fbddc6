// signcallback builds a bank webhook payload, signs it with the shared
// secret, and optionally delivers it. Useful for poking a local server
// without a real bank on the other end.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type webhookPayload struct {
	EventType     string `json:"event_type"`
	PaymentID     string `json:"payment_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	UTRNumber     string `json:"utr_number,omitempty"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/bank", "Webhook URL")
	secret := flag.String("secret", os.Getenv("BANK_WEBHOOK_SECRET"), "Webhook HMAC secret")
	transactionID := flag.String("transaction-id", "", "Bank transaction id")
	paymentRef := flag.String("payment-ref", "", "Internal payment reference (alternative to transaction id)")
	status := flag.String("status", "SUCCESS", "Bank status (SUCCESS, FAILED, PENDING, REVERSED)")
	amount := flag.String("amount", "", "Amount, e.g. 1500.00")
	currency := flag.String("currency", "INR", "Currency")
	utr := flag.String("utr", "", "UTR number")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and BANK_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}
	if *transactionID == "" && *paymentRef == "" {
		fmt.Fprintf(os.Stderr, "Error: one of -transaction-id or -payment-ref is required\n")
		os.Exit(1)
	}

	payload := webhookPayload{
		EventType:     "payment.status",
		PaymentID:     *paymentRef,
		TransactionID: *transactionID,
		Amount:        *amount,
		Currency:      *currency,
		Status:        *status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UTRNumber:     *utr,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write(body)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	fmt.Printf("X-Bank-Signature: %s\n", sig)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bank-Signature", sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response: %s\n%s\n", resp.Status, string(respBody))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
