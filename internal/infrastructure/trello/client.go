package trello

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/logging"
	"BoardWriter/internal/ports"
)

// DefaultBaseURL is the Trello REST API root.
const DefaultBaseURL = "https://api.trello.com/1"

// Client implements ports.Board against the Trello REST API. Each method is a
// single round trip; nothing is retried.
type Client struct {
	baseURL    string
	credential domain.BoardCredential
	http       *http.Client
	logger     *slog.Logger
}

var _ ports.Board = (*Client)(nil)

// NewClient validates the credential and builds a client. A nil httpClient gets a 30s timeout.
func NewClient(baseURL string, credential domain.BoardCredential, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if !credential.Valid() {
		return nil, xerrors.New(xerrors.CodeConfig, "TRELLO_API_KEY and TRELLO_API_TOKEN must be set")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{baseURL: baseURL, credential: credential, http: httpClient, logger: logger}, nil
}

type member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type list struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	IDBoard string `json:"idBoard"`
}

type board struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Lists []list `json:"lists"`
}

type card struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VerifyAccess checks the credential against /members/me.
func (c *Client) VerifyAccess(ctx context.Context) (domain.AccountIdentity, error) {
	var m member
	if err := c.do(ctx, http.MethodGet, "/members/me", nil, nil, &m); err != nil {
		if isStatus(err, http.StatusUnauthorized, http.StatusForbidden) {
			return domain.AccountIdentity{}, xerrors.Wrap(xerrors.CodeAuth, err, "trello rejected the API key/token")
		}
		return domain.AccountIdentity{}, fmt.Errorf("verify access: %w", err)
	}
	c.logger.Debug("authenticated", "username", m.Username, "full_name", m.FullName)
	return domain.AccountIdentity{ID: m.ID, Username: m.Username, FullName: m.FullName}, nil
}

// ListBoards returns the boards visible to the authenticated member.
func (c *Client) ListBoards(ctx context.Context) ([]domain.BoardSummary, error) {
	var boards []board
	query := url.Values{"fields": {"name"}}
	if err := c.do(ctx, http.MethodGet, "/members/me/boards", query, nil, &boards); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	out := make([]domain.BoardSummary, 0, len(boards))
	for _, b := range boards {
		out = append(out, domain.BoardSummary{ID: b.ID, Name: b.Name})
	}
	return out, nil
}

// VerifyBoardAccess loads board metadata with its open lists.
func (c *Client) VerifyBoardAccess(ctx context.Context, boardID string) (domain.BoardDetails, error) {
	if strings.TrimSpace(boardID) == "" {
		return domain.BoardDetails{}, xerrors.New(xerrors.CodeConfig, "board id must be provided")
	}
	var b board
	query := url.Values{
		"fields": {"name,url,idOrganization"},
		"lists":  {"open"},
	}
	if err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID), query, nil, &b); err != nil {
		if isStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return domain.BoardDetails{}, xerrors.Wrap(xerrors.CodeNotFound, err, fmt.Sprintf("board %s is not accessible", boardID))
		}
		return domain.BoardDetails{}, fmt.Errorf("verify board %s: %w", boardID, err)
	}

	details := domain.BoardDetails{ID: b.ID, Name: b.Name, URL: b.URL, Lists: make([]domain.ListDetails, 0, len(b.Lists))}
	if details.ID == "" {
		details.ID = boardID
	}
	for _, l := range b.Lists {
		details.Lists = append(details.Lists, toListDetails(l))
	}
	c.logger.Debug("board verified", "board", details.Name, "url", details.URL, "lists", len(details.Lists))
	return details, nil
}

// VerifyList loads one list by id.
func (c *Client) VerifyList(ctx context.Context, listID string) (domain.ListDetails, error) {
	if strings.TrimSpace(listID) == "" {
		return domain.ListDetails{}, xerrors.New(xerrors.CodeConfig, "list id must be provided")
	}
	var l list
	if err := c.do(ctx, http.MethodGet, "/lists/"+url.PathEscape(listID), nil, nil, &l); err != nil {
		if isStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return domain.ListDetails{}, xerrors.Wrap(xerrors.CodeNotFound, err, fmt.Sprintf("list %s is not accessible", listID))
		}
		return domain.ListDetails{}, fmt.Errorf("verify list %s: %w", listID, err)
	}
	return toListDetails(l), nil
}

// ListCards returns the cards of a list; an empty list yields an empty, non-nil slice.
func (c *Client) ListCards(ctx context.Context, listID string) ([]domain.WorkItem, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, xerrors.New(xerrors.CodeConfig, "list id must be provided")
	}
	var cards []card
	query := url.Values{"fields": {"name"}}
	if err := c.do(ctx, http.MethodGet, "/lists/"+url.PathEscape(listID)+"/cards", query, nil, &cards); err != nil {
		return nil, fmt.Errorf("list cards of %s: %w", listID, err)
	}
	items := make([]domain.WorkItem, 0, len(cards))
	for _, cd := range cards {
		items = append(items, domain.WorkItem{ID: cd.ID, Title: cd.Name})
	}
	c.logger.Debug("cards fetched", "list_id", listID, "count", len(items))
	return items, nil
}

// AddComment appends a comment to a card. Every call creates a new comment.
func (c *Client) AddComment(ctx context.Context, cardID, text string) error {
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/actions/comments", nil, body, nil); err != nil {
		return fmt.Errorf("comment on card %s: %w", cardID, err)
	}
	return nil
}

// MoveCard moves a card to another list.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string) error {
	body := map[string]string{"idList": listID}
	if err := c.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(cardID), nil, body, nil); err != nil {
		return fmt.Errorf("move card %s to %s: %w", cardID, listID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("key", c.credential.Key)
	q.Set("token", c.credential.Token)
	endpoint := c.baseURL + path

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?"+q.Encode(), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if stdErrors.As(err, &urlErr) {
			// the query string carries the credential
			urlErr.URL = endpoint
		}
		return xerrors.Wrap(xerrors.CodeTransport, err, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return xerrors.Wrap(xerrors.CodeTransport, readErr, "read error response")
		}
		c.logger.Debug("trello error", "method", method, "path", path, "status", resp.StatusCode)
		return &xerrors.RemoteError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isStatus(err error, codes ...int) bool {
	remote, ok := xerrors.RemoteOf(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if remote.StatusCode == code {
			return true
		}
	}
	return false
}

func toListDetails(l list) domain.ListDetails {
	return domain.ListDetails{ID: l.ID, Name: l.Name, Closed: l.Closed, BoardID: l.IDBoard}
}
