// Package ledger предоставляет клиенты внешних контрактов-реестров,
// доступных через HTTP API релеера. Клиенты только оркеструют удалённые
// вызовы: внутренняя логика контрактов сервису недоступна.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// ErrNotConfirmed возвращается, если транзакция не подтвердилась за
// отведённое время. Ошибка временная: следующий запуск пройдёт через
// шлюз идемпотентности и повторит отправку только при необходимости.
var ErrNotConfirmed = errors.New("transaction not confirmed in time")

const (
	requestTimeout  = 5 * time.Second
	maxHTTPRetries  = 3
	confirmWaitMax  = 30 * time.Second
	confirmWaitBase = 500 * time.Millisecond
)

// client инкапсулирует общий HTTP-обмен с релеером.
type client struct {
	baseURL string
	http    *retryablehttp.Client
}

func newClient(baseURL string) client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxHTTPRetries
	rc.Logger = nil
	rc.HTTPClient.Timeout = requestTimeout

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return client{baseURL: base, http: rc}
}

// getJSON выполняет GET-запрос и разбирает ответ в out.
// Для 204 возвращает false без разбора тела.
func (c *client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("ledger client not configured")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	return true, nil
}

// postJSON отправляет тело запроса и разбирает ответ в out.
func (c *client) postJSON(ctx context.Context, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("ledger client not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// WaitConfirmation дожидается включения транзакции, опрашивая релеер с
// нарастающим интервалом. По исчерпании времени возвращает ErrNotConfirmed.
func (c *client) WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error {
	if receipt.Confirmed {
		return nil
	}

	backoff := retry.WithMaxDuration(confirmWaitMax, retry.NewFibonacci(confirmWaitBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var status model.TxReceipt
		found, err := c.getJSON(ctx, "/api/tx/"+receipt.TxHash, &status)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !found || !status.Confirmed {
			return retry.RetryableError(ErrNotConfirmed)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, receipt.TxHash)
	}

	return nil
}
