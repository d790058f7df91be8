package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient is a Client over a REST aggregator API. It maps transport and
// status failures onto the package error taxonomy so the engine and queue can
// make retry decisions without knowing which aggregator is behind it.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the aggregator at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type accountsResponse struct {
	Accounts []rawAccountJSON `json:"accounts"`
}

type rawAccountJSON struct {
	AccountID    string  `json:"account_id"`
	Name         string  `json:"name"`
	OfficialName string  `json:"official_name"`
	Type         string  `json:"type"`
	Mask         string  `json:"mask"`
	Balance      float64 `json:"balance"`
	Currency     string  `json:"currency"`
}

type transactionsResponse struct {
	Transactions []rawTransactionJSON `json:"transactions"`
	NextCursor   string               `json:"next_cursor"`
}

type rawTransactionJSON struct {
	TransactionID string  `json:"transaction_id"`
	AccountID     string  `json:"account_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	MerchantName  string  `json:"merchant_name"`
	Pending       bool    `json:"pending"`
}

// GetAccounts implements Client.
func (c *HTTPClient) GetAccounts(ctx context.Context, accessToken string) ([]RawAccount, error) {
	var resp accountsResponse
	if err := c.get(ctx, "/accounts", url.Values{}, accessToken, &resp); err != nil {
		return nil, err
	}

	out := make([]RawAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, RawAccount{
			ProviderAccountID: a.AccountID,
			Name:              a.Name,
			OfficialName:      a.OfficialName,
			Type:              a.Type,
			Mask:              a.Mask,
			Balance:           a.Balance,
			Currency:          a.Currency,
		})
	}
	return out, nil
}

// GetTransactions implements Client.
func (c *HTTPClient) GetTransactions(ctx context.Context, accessToken string, r DateRange, accountID string, cursor string) (Page, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("start_date", r.Start.Format("2006-01-02"))
	params.Set("end_date", r.End.Format("2006-01-02"))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp transactionsResponse
	if err := c.get(ctx, "/transactions", params, accessToken, &resp); err != nil {
		return Page{}, err
	}

	page := Page{NextCursor: resp.NextCursor}
	for _, t := range resp.Transactions {
		date, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			// Leave the date zero; the engine skips the record and logs it.
			date = time.Time{}
		}
		page.Transactions = append(page.Transactions, RawTransaction{
			ProviderTxID:      t.TransactionID,
			ProviderAccountID: t.AccountID,
			Amount:            t.Amount,
			Currency:          t.Currency,
			Date:              date,
			Description:       t.Description,
			MerchantName:      t.MerchantName,
			Pending:           t.Pending,
		})
	}
	return page, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, accessToken string, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport errors (timeouts, resets) are worth retrying.
		return Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Reason: fmt.Sprintf("%s returned %d", path, resp.StatusCode)}

	case resp.StatusCode >= 500:
		return Transient(fmt.Errorf("%s returned %d", path, resp.StatusCode))

	default:
		return fmt.Errorf("%s returned unexpected status %d", path, resp.StatusCode)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
