package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tonsiri/loanbook/pkg/models"
	"github.com/tonsiri/loanbook/pkg/store"
)

// Client talks to the spreadsheet-backed sync endpoint. The endpoint is a
// single URL that multiplexes actions through a query parameter on reads and
// an action field in the POST body on writes.
type Client struct {
	ScriptURL  string
	storage    store.Store
	httpClient *http.Client
}

// NewClient creates a sync client. The storage is updated as a side effect of
// every successful pull so the local copy always matches what was fetched.
func NewClient(scriptURL string, s store.Store) *Client {
	return &Client{
		ScriptURL:  scriptURL,
		storage:    s,
		httpClient: &http.Client{},
	}
}

type loansResponse struct {
	Status string        `json:"status"`
	Loans  []models.Loan `json:"loans"`
}

type uploadResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// FetchLoans pulls the full remote collection. Transport errors, non-2xx
// statuses and responses without the success marker are all reported as a
// single failure; the caller treats them as "offline" and keeps local data.
// On success the local store is overwritten with the remote copy.
func (c *Client) FetchLoans() ([]models.Loan, error) {
	url := fmt.Sprintf("%s?action=getLoans&t=%d", c.ScriptURL, time.Now().UnixMilli())

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("FetchLoans: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("FetchLoans: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchLoans: endpoint returned status %d", resp.StatusCode)
	}

	var result loansResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("FetchLoans: failed to unmarshal response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("FetchLoans: endpoint reported status %q", result.Status)
	}

	loans := result.Loans
	if loans == nil {
		loans = []models.Loan{}
	}

	if err := c.storage.Save(loans); err != nil {
		log.Printf("FetchLoans: failed to write pulled loans locally: %v", err)
	}
	log.Printf("FetchLoans: pulled %d loans", len(loans))
	return loans, nil
}

// PushLoans submits the full collection for remote persistence without
// waiting for the result. The payload is serialized before the goroutine is
// dispatched so later mutations by the caller cannot race the encode.
// Failures are logged and never retried; the next successful pull is the
// recovery path.
func (c *Client) PushLoans(loans []models.Loan) {
	payload, err := json.Marshal(map[string]interface{}{
		"action": "saveLoans",
		"loans":  loans,
	})
	if err != nil {
		log.Printf("PushLoans: failed to marshal payload: %v", err)
		return
	}

	go func() {
		resp, err := c.httpClient.Post(c.ScriptURL, "text/plain", bytes.NewReader(payload))
		if err != nil {
			log.Printf("PushLoans: upload failed: %v", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			log.Printf("PushLoans: endpoint returned status %d", resp.StatusCode)
		}
	}()
}

// UploadSlip submits an inline-encoded image to remote storage and returns
// the durable URL. On any failure the caller keeps the inline encoding as
// the stored value.
func (c *Client) UploadSlip(base64, fileName string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"action":   "uploadSlip",
		"base64":   base64,
		"fileName": fileName,
	})
	if err != nil {
		return "", fmt.Errorf("UploadSlip: failed to marshal payload: %w", err)
	}

	resp, err := c.httpClient.Post(c.ScriptURL, "text/plain", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("UploadSlip: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("UploadSlip: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("UploadSlip: endpoint returned status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("UploadSlip: failed to unmarshal response: %w", err)
	}
	if result.Status != "success" || result.URL == "" {
		return "", fmt.Errorf("UploadSlip: endpoint reported status %q", result.Status)
	}

	log.Printf("UploadSlip: stored %s", fileName)
	return result.URL, nil
}
