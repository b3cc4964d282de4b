/**
 * @description
 * This package provides a client for interacting with the Midtrans payment
 * gateway. It encapsulates the logic for creating Snap transactions, querying
 * transaction status, and verifying the authenticity signature carried by
 * status notifications.
 *
 * @dependencies
 * - bytes, context, crypto/sha512, encoding/json, fmt, net/http, time: Standard Go libraries.
 */

package midtransclient

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the Midtrans Snap and Core APIs.
type Client struct {
	SnapBaseURL string
	APIBaseURL  string
	ServerKey   string
	HTTPClient  *http.Client
}

// NewClient creates a new Midtrans API client.
func NewClient(snapBaseURL, apiBaseURL, serverKey string) *Client {
	return &Client{
		SnapBaseURL: snapBaseURL,
		APIBaseURL:  apiBaseURL,
		ServerKey:   serverKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ItemDetail describes one line item on a Snap transaction.
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// SnapTransactionRequest represents the payload for creating a Snap transaction.
type SnapTransactionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails []ItemDetail `json:"item_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
	} `json:"customer_details"`
	Callbacks struct {
		Finish string `json:"finish,omitempty"`
	} `json:"callbacks,omitempty"`
}

// SnapTransactionResponse is the expected response from the Snap endpoint.
type SnapTransactionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatusResponse is the response from the transaction status endpoint.
type TransactionStatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
}

// ErrorResponse represents an error from the Midtrans API.
type ErrorResponse struct {
	StatusCode    string   `json:"status_code"`
	StatusMessage string   `json:"status_message"`
	ErrorMessages []string `json:"error_messages"`
}

func (e *ErrorResponse) Error() string {
	if len(e.ErrorMessages) > 0 {
		return fmt.Sprintf("midtrans api error: %s", e.ErrorMessages[0])
	}
	if e.StatusMessage != "" {
		return fmt.Sprintf("midtrans api error: %s - %s", e.StatusCode, e.StatusMessage)
	}
	return "unknown midtrans api error"
}

// CreateSnapTransaction asks the gateway for a Snap token the frontend can
// redirect the user to hosted checkout with.
func (c *Client) CreateSnapTransaction(ctx context.Context, req SnapTransactionRequest) (*SnapTransactionResponse, error) {
	url := fmt.Sprintf("%s/snap/v1/transactions", c.SnapBaseURL)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build snap request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("snap request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snap response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("snap request failed with status %d", resp.StatusCode)
	}

	var snapResp SnapTransactionResponse
	if err := json.Unmarshal(respBody, &snapResp); err != nil {
		return nil, fmt.Errorf("decode snap response: %w", err)
	}
	return &snapResp, nil
}

// GetTransactionStatus queries the gateway for the current status of an order.
// The poller uses this when a webhook has not arrived yet.
func (c *Client) GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatusResponse, error) {
	url := fmt.Sprintf("%s/v2/%s/status", c.APIBaseURL, orderID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("status request failed with status %d", resp.StatusCode)
	}

	var statusResp TransactionStatusResponse
	if err := json.Unmarshal(respBody, &statusResp); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &statusResp, nil
}

// VerifySignature checks a notification's signature key: SHA-512 of
// order_id + status_code + gross_amount + server key.
func (c *Client) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	expected := ComputeSignature(orderID, statusCode, grossAmount, c.ServerKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ComputeSignature derives the hex-encoded notification signature.
func ComputeSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// setHeaders applies the Basic auth and content headers Midtrans expects.
// The server key is the username with an empty password.
func (c *Client) setHeaders(req *http.Request) {
	token := base64.StdEncoding.EncodeToString([]byte(c.ServerKey + ":"))
	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
